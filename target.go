// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import "fmt"

// Callable is a directly callable value of the dynamic side.
type Callable interface {
	Call(ctx *Context, args []Value) ([]Value, error)
}

// Func adapts a function to Callable.
type Func func(ctx *Context, args []Value) ([]Value, error)

// Call calls f.
func (f Func) Call(ctx *Context, args []Value) ([]Value, error) { return f(ctx, args) }

// Target is the destination of a callback: a callable invoked directly or
// a coroutine resumed with the arguments, plus the execution context.
// The variant is fixed at creation.
type Target struct {
	ctx *Context
	fn  Callable
	co  *Coroutine
}

// NewTarget resolves v into a target running in ctx. v must be a
// Callable, a Func-shaped function or a *Coroutine. A nil ctx selects a
// fresh context; coroutines always run in their own.
func NewTarget(ctx *Context, v Value) (Target, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	switch t := v.(type) {
	case *Coroutine:
		if t == nil {
			break
		}
		return Target{ctx: t.ctx, co: t}, nil
	case Callable:
		if t == nil {
			break
		}
		return Target{ctx: ctx, fn: t}, nil
	case func(*Context, []Value) ([]Value, error):
		if t == nil {
			break
		}
		return Target{ctx: ctx, fn: Func(t)}, nil
	}
	return Target{}, fmt.Errorf("%w: %T", ErrNotCallable, v)
}

// Context returns the execution context the target runs in.
func (t *Target) Context() *Context { return t.ctx }

// IsCoroutine reports whether the target is resumed rather than called.
func (t *Target) IsCoroutine() bool { return t.co != nil }

// prepare selects the context of a direct call. A context parked inside a
// coroutine cannot be used, because the callee may resume that coroutine;
// the target switches to a fresh context for good.
func (t *Target) prepare() {
	if t.fn != nil && t.ctx.Suspended() {
		t.ctx = NewContext()
	}
}

// activate calls or resumes the target. A panic in a direct call is
// returned as an error.
func (t *Target) activate(args []Value) (vals []Value, err error) {
	if t.co != nil {
		return t.co.Resume(args...)
	}
	defer func() {
		if r := recover(); r != nil {
			vals, err = nil, panicError(r)
		}
	}()
	return t.fn.Call(t.ctx, args)
}
