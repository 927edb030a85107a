// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"code.hybscloud.com/kont"
)

// Pre-allocated erased values to eliminate heap escapes when boxing empty
// structs into any/kont.Frame during Expr-world execution.
var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprCurrent     kont.Erased = Current{}
)

// identityResume is the identity resume function for EffectFrame construction.
func identityResume(v kont.Erased) kont.Erased { return v }

// ExprYieldThen yields vs and then continues with next.
// Fuses ExprPerform(Yield{Values: vs}) + ExprThen.
func ExprYieldThen[B any](vs []Value, next kont.Expr[B]) kont.Expr[B] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(next.Value), Frame: next.Frame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = Yield{Values: vs}
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[B](ef)
}

func yieldBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func([]Value) kont.Expr[B])
	args, _ := current.([]Value)
	result := f(args)
	return kont.Erased(result.Value), result.Frame
}

// ExprYieldBind yields vs and passes the arguments of the resume to f.
// Fuses ExprPerform(Yield{Values: vs}) + ExprBind.
func ExprYieldBind[B any](vs []Value, f func([]Value) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = yieldBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = Yield{Values: vs}
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

func contextBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func(*Context) kont.Expr[B])
	result := f(current.(*Context))
	return kont.Erased(result.Value), result.Frame
}

// ExprContextBind passes the running coroutine's context to f.
// Fuses ExprPerform(Current{}) + ExprBind.
func ExprContextBind[B any](f func(*Context) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = contextBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprCurrent
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

// ExprReturn finishes a coroutine body with vs.
func ExprReturn(vs ...Value) kont.Expr[[]Value] {
	return kont.ExprReturn(vs)
}

// ExprRaise fails a coroutine body with err.
func ExprRaise[A any](err error) kont.Expr[A] {
	return kont.ExprThrowError[error, A](err)
}
