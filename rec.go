// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"code.hybscloud.com/kont"
)

// Loop builds a recursive coroutine body (Cont-world), such as a
// generator that yields once per iteration.
// step returns Left(nextState) to continue or Right(values) to return.
func Loop[S any](initial S, step func(S) kont.Eff[kont.Either[S, []Value]]) kont.Eff[[]Value] {
	return kont.Bind(step(initial), func(e kont.Either[S, []Value]) kont.Eff[[]Value] {
		if next, ok := e.GetLeft(); ok {
			return Loop(next, step)
		}
		vs, _ := e.GetRight()
		return kont.Pure(vs)
	})
}

// ExprLoop builds a recursive coroutine body (Expr-world).
// step returns Left(nextState) to continue or Right(values) to return.
// Steps that complete without an effect are unrolled in place.
func ExprLoop[S any](initial S, step func(S) kont.Expr[kont.Either[S, []Value]]) kont.Expr[[]Value] {
	m := step(initial)
	for {
		if _, ok := m.Frame.(kont.ReturnFrame); !ok {
			break
		}
		next, ok := m.Value.GetLeft()
		if !ok {
			vs, _ := m.Value.GetRight()
			return kont.ExprReturn(vs)
		}
		m = step(next)
	}
	bf := kont.AcquireBindFrame()
	bf.F = func(a kont.Erased) kont.Expr[kont.Erased] {
		e := a.(kont.Either[S, []Value])
		if next, ok := e.GetLeft(); ok {
			result := ExprLoop(next, step)
			return kont.Expr[kont.Erased]{Value: kont.Erased(result.Value), Frame: result.Frame}
		}
		vs, _ := e.GetRight()
		return kont.Expr[kont.Erased]{Value: kont.Erased(vs), Frame: exprReturnFrame}
	}
	bf.Next = exprReturnFrame
	return kont.Expr[[]Value]{
		Frame: kont.ChainFrames(m.Frame, bf),
	}
}
