// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"fmt"

	"code.hybscloud.com/kont"
	"github.com/google/uuid"
)

// coroutineDispatcher is the structural interface for operations a
// coroutine answers itself, without suspending.
type coroutineDispatcher interface {
	DispatchCoroutine(co *Coroutine) (kont.Resumed, error)
}

// errorDispatcher is the structural interface of kont error operations.
type errorDispatcher interface {
	DispatchError(ctx *kont.ErrorContext[error]) (kont.Resumed, bool)
}

type outcome = kont.Either[error, []Value]

// Coroutine is a suspendable computation of the dynamic side. It is
// resumed with arguments and produces values at each Yield and when it
// returns. Failures are raised with kont error effects or panics.
type Coroutine struct {
	ctx    *Context
	body   func(args []Value) kont.Expr[[]Value]
	susp   *kont.Suspension[outcome]
	status Status
	failed bool
}

// NewCoroutine creates a suspended coroutine from a Cont-world body.
func NewCoroutine(body func(args []Value) kont.Eff[[]Value]) *Coroutine {
	return NewExprCoroutine(func(args []Value) kont.Expr[[]Value] {
		return kont.Reify(body(args))
	})
}

// NewExprCoroutine creates a suspended coroutine from an Expr-world body.
func NewExprCoroutine(body func(args []Value) kont.Expr[[]Value]) *Coroutine {
	co := &Coroutine{body: body}
	co.ctx = &Context{id: uuid.New(), co: co}
	return co
}

// Context returns the coroutine's own execution context.
func (co *Coroutine) Context() *Context { return co.ctx }

// Status returns the run state.
func (co *Coroutine) Status() Status { return co.status }

// Yielded reports whether the coroutine is parked at a yield.
func (co *Coroutine) Yielded() bool { return co.susp != nil }

// Failed reports whether the coroutine died from a failure.
func (co *Coroutine) Failed() bool { return co.failed }

// Resume runs the coroutine until it yields, returns or fails. The first
// resume passes args to the body; later resumes deliver args as the
// result of the pending Yield. A yield and a return both produce values.
func (co *Coroutine) Resume(args ...Value) (vals []Value, err error) {
	switch co.status {
	case StatusDead:
		return nil, ErrCoroutineDead
	case StatusRunning:
		return nil, ErrCoroutineRunning
	}
	co.status = StatusRunning
	defer func() {
		if r := recover(); r != nil {
			co.susp, co.status, co.failed = nil, StatusDead, true
			vals, err = nil, panicError(r)
		}
	}()
	var result outcome
	var susp *kont.Suspension[outcome]
	if co.susp == nil {
		result, susp = Step(co.body(args))
	} else {
		result, susp = co.susp.Resume(args)
		co.susp = nil
	}
	return co.advance(result, susp)
}

// advance drives the coroutine past effects it answers itself and parks it
// at the first Yield.
func (co *Coroutine) advance(result outcome, susp *kont.Suspension[outcome]) ([]Value, error) {
	for susp != nil {
		switch op := susp.Op().(type) {
		case Yield:
			co.susp, co.status = susp, StatusSuspended
			return op.Values, nil
		case coroutineDispatcher:
			v, err := op.DispatchCoroutine(co)
			if err != nil {
				susp.Discard()
				return co.finish(kont.Left[error, []Value](err))
			}
			result, susp = susp.Resume(v)
		case errorDispatcher:
			var ctx kont.ErrorContext[error]
			v, _ := op.DispatchError(&ctx)
			if ctx.HasErr {
				susp.Discard()
				return co.finish(kont.Left[error, []Value](ctx.Err))
			}
			result, susp = susp.Resume(v)
		default:
			panic("callable: unhandled effect in coroutine")
		}
	}
	return co.finish(result)
}

func (co *Coroutine) finish(result outcome) ([]Value, error) {
	co.status = StatusDead
	if err, ok := result.GetLeft(); ok {
		co.failed = true
		return nil, err
	}
	vals, _ := result.GetRight()
	return vals, nil
}

// Step evaluates a coroutine body until the first effect suspension.
// Returns (Right(values), nil) on completion, (Left(err), nil) when
// evaluation threw, or (zero, suspension) if pending.
func Step(body kont.Expr[[]Value]) (outcome, *kont.Suspension[outcome]) {
	wrapped := kont.ExprMap(body, func(vs []Value) outcome {
		return kont.Right[error, []Value](vs)
	})
	return kont.StepExpr(wrapped)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
