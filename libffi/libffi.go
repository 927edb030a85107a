// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build libffi

// Package libffi is a calling mechanism for C functions. Calls and
// closures go through libffi, libraries are opened with purego.
//
// Panics raised by closure handlers cannot unwind through C frames. They
// are recovered at the closure boundary, the return slot is zeroed and the
// panic is passed to the mechanism's panic hook.
package libffi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"code.hybscloud.com/callable"
	"github.com/jupiterrider/ffi"
)

var (
	ErrPrep    = errors.New("libffi: prep failed")
	ErrAddress = errors.New("libffi: not a native address")
)

var types = [...]*ffi.Type{
	callable.TypeVoid:    &ffi.TypeVoid,
	callable.TypeUint8:   &ffi.TypeUint8,
	callable.TypeSint8:   &ffi.TypeSint8,
	callable.TypeUint16:  &ffi.TypeUint16,
	callable.TypeSint16:  &ffi.TypeSint16,
	callable.TypeUint32:  &ffi.TypeUint32,
	callable.TypeSint32:  &ffi.TypeSint32,
	callable.TypeUint64:  &ffi.TypeUint64,
	callable.TypeSint64:  &ffi.TypeSint64,
	callable.TypeFloat:   &ffi.TypeFloat,
	callable.TypeDouble:  &ffi.TypeDouble,
	callable.TypePointer: &ffi.TypePointer,
}

func ffiType(t callable.Type) (*ffi.Type, error) {
	if int(t) >= len(types) {
		return nil, fmt.Errorf("%w: slot of type %v", callable.ErrBadLayout, t)
	}
	return types[t], nil
}

// Option configures a Mechanism.
type Option func(*Mechanism)

// WithPanicHook sets the function receiving panics recovered at the
// closure boundary.
func WithPanicHook(fn func(any)) Option {
	return func(m *Mechanism) { m.onPanic = fn }
}

// Mechanism implements callable.Mechanism with libffi.
type Mechanism struct {
	onPanic func(any)
}

// New creates a libffi mechanism. Recovered closure panics are logged
// with slog unless a hook is set.
func New(opts ...Option) *Mechanism {
	m := &Mechanism{onPanic: func(r any) {
		slog.Error("libffi: closure panicked", "panic", r)
	}}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Mechanism) Compile(ret callable.Type, args []callable.Type) (callable.Signature, error) {
	if len(args) > callable.MaxArgs+2 {
		return nil, fmt.Errorf("%w: %d slots", callable.ErrBadLayout, len(args))
	}
	s := &signature{mech: m, args: make([]*ffi.Type, len(args))}
	var err error
	if s.ret, err = ffiType(ret); err != nil {
		return nil, err
	}
	for i, t := range args {
		if t == callable.TypeVoid {
			return nil, fmt.Errorf("%w: void slot %d", callable.ErrBadLayout, i)
		}
		if s.args[i], err = ffiType(t); err != nil {
			return nil, err
		}
	}
	if status := ffi.PrepCif(&s.cif, ffi.DefaultAbi, uint32(len(args)), s.ret, s.args...); status != ffi.OK {
		return nil, fmt.Errorf("%w: cif status %v", ErrPrep, status)
	}
	return s, nil
}

type signature struct {
	mech *Mechanism
	cif  ffi.Cif
	ret  *ffi.Type
	args []*ffi.Type
}

func entry(fn callable.Address) (uintptr, error) {
	switch a := fn.(type) {
	case uintptr:
		if a != 0 {
			return a, nil
		}
	case unsafe.Pointer:
		if a != nil {
			return uintptr(a), nil
		}
	}
	return 0, fmt.Errorf("%w: %T", ErrAddress, fn)
}

func (s *signature) Check(fn callable.Address) error {
	_, err := entry(fn)
	return err
}

func (s *signature) Call(fn callable.Address, ret unsafe.Pointer, args []unsafe.Pointer) {
	addr, err := entry(fn)
	if err != nil {
		panic(err)
	}
	// libffi widens small integer returns to a full register.
	var wide [2]uint64
	rv := ret
	if s.ret != &ffi.TypeVoid {
		rv = unsafe.Pointer(&wide[0])
	}
	ffi.Call(&s.cif, addr, rv, args...)
	if ret != nil && s.ret != &ffi.TypeVoid {
		copy(unsafe.Slice((*byte)(ret), s.ret.Size), unsafe.Slice((*byte)(rv), s.ret.Size))
	}
}

type closure struct {
	sig     *signature
	handler callable.Handler
	mem     *ffi.Closure
}

var (
	closures sync.Map // uintptr(*ffi.Closure) -> *closure
	dispatch = sync.OnceValue(func() uintptr { return ffi.NewCallback(trampoline) })
)

func (s *signature) Closure(h callable.Handler) (callable.Address, func(), error) {
	var code unsafe.Pointer
	mem := ffi.ClosureAlloc(unsafe.Sizeof(ffi.Closure{}), &code)
	if mem == nil {
		return nil, nil, fmt.Errorf("%w: closure allocation", ErrPrep)
	}
	c := &closure{sig: s, handler: h, mem: mem}
	key := uintptr(unsafe.Pointer(mem))
	closures.Store(key, c)
	if status := ffi.PrepClosureLoc(mem, &s.cif, dispatch(), unsafe.Pointer(mem), code); status != ffi.OK {
		closures.Delete(key)
		ffi.ClosureFree(mem)
		return nil, nil, fmt.Errorf("%w: closure status %v", ErrPrep, status)
	}
	release := func() {
		closures.Delete(key)
		ffi.ClosureFree(mem)
	}
	return uintptr(code), release, nil
}

func trampoline(cif *ffi.Cif, ret unsafe.Pointer, args *unsafe.Pointer, userData unsafe.Pointer) uintptr {
	v, ok := closures.Load(uintptr(userData))
	if !ok {
		return 0
	}
	c := v.(*closure)
	n := len(c.sig.args)
	var slots []unsafe.Pointer
	if n > 0 {
		slots = unsafe.Slice(args, n)
	}
	defer func() {
		if r := recover(); r != nil {
			if ret != nil && c.sig.ret != &ffi.TypeVoid {
				clear(unsafe.Slice((*byte)(ret), c.sig.ret.Size))
			}
			c.sig.mech.onPanic(r)
		}
	}()
	c.handler(ret, slots)
	return 0
}
