// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package callable is a dynamic foreign-function call bridge driven by
// signatures described at run time.
//
// A description ([Info]) is compiled once into a cached [Plan]: parameter
// descriptors, the native ABI layout and a [Signature] of a generic
// calling [Mechanism]. Plans are used in both directions.
//
// # Architecture
//
//   - Forward: [Bridge.Invoke] marshals dynamic values into native slots, calls the entry address and marshals results, outputs and reported native errors back.
//   - Reverse: [Bridge.MakeClosure] creates a [Trampoline], a native entry point that calls a [Callable] or resumes a [Coroutine]. [Bridge.MakeEventClosure] is the value-oriented variant.
//   - Locking: a process-wide re-entrant [Guard] is held while dynamic code runs and released around native calls.
//   - Destruction: trampolines are destroyed at safe points, never inside their own frame. Pending destructions travel through a bounded lock-free ring from [code.hybscloud.com/lfq].
//
// # Coroutines
//
// Coroutine bodies are [code.hybscloud.com/kont] computations. [Yield] suspends,
// [Raise] fails, [Current] reads the running context. Cont-world helpers are
// [YieldThen], [YieldBind], [ContextBind], [Return]; Expr-world variants are
// prefixed with Expr. [Loop] and [ExprLoop] build generator-style bodies.
//
// # Mechanisms
//
//   - [Reflect]: native functions are Go funcs with C-like signatures.
//   - Package libffi (build tag libffi): C functions through libffi.
//
// # Example
//
//	b := callable.New(callable.WithMarshaller(host.NewMarshaller(nil)))
//	plan, _ := b.Build(info, func(a, c int32) int32 { return a + c })
//	res, _ := b.Invoke(plan, int64(40), int64(2)) // res[0] == int64(42)
package callable
