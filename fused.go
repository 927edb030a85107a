// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"code.hybscloud.com/kont"
)

// YieldThen yields vs and then continues with next, ignoring the
// arguments of the resume.
// Fuses Perform(Yield{Values: vs}) + Then.
func YieldThen[B any](vs []Value, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Yield{Values: vs}), next)
}

// YieldBind yields vs and passes the arguments of the resume to f.
// Fuses Perform(Yield{Values: vs}) + Bind.
func YieldBind[B any](vs []Value, f func([]Value) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Yield{Values: vs}), f)
}

// ContextBind passes the running coroutine's context to f.
// Fuses Perform(Current{}) + Bind.
func ContextBind[B any](f func(*Context) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Current{}), f)
}

// Return finishes a coroutine body with vs.
func Return(vs ...Value) kont.Eff[[]Value] {
	return kont.Pure(vs)
}

// Raise fails a coroutine body with err.
func Raise[A any](err error) kont.Eff[A] {
	return kont.ThrowError[error, A](err)
}
