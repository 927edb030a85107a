// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Mechanism is a generic, signature-driven calling mechanism.
// Compile turns a native layout into a reusable Signature.
type Mechanism interface {
	Compile(ret Type, args []Type) (Signature, error)
}

// Handler receives a call on a closure. ret points at storage for the
// return value and args[i] points at the value of native slot i.
type Handler func(ret unsafe.Pointer, args []unsafe.Pointer)

// Signature is a compiled native layout.
//
// Call invokes fn with args[i] pointing at the value of slot i and stores
// the result at ret. Closure allocates an entry address that dispatches to
// h; release frees it and must not run while the closure is executing.
type Signature interface {
	Check(fn Address) error
	Call(fn Address, ret unsafe.Pointer, args []unsafe.Pointer)
	Closure(h Handler) (addr Address, release func(), err error)
}

// Reflect returns the mechanism whose native functions are Go funcs with
// C-like signatures: fixed-width integers, float32, float64 and
// unsafe.Pointer, with at most one result.
func Reflect() Mechanism { return reflectMechanism{} }

type reflectMechanism struct{}

var reflectTypes = [...]reflect.Type{
	TypeUint8:   reflect.TypeFor[uint8](),
	TypeSint8:   reflect.TypeFor[int8](),
	TypeUint16:  reflect.TypeFor[uint16](),
	TypeSint16:  reflect.TypeFor[int16](),
	TypeUint32:  reflect.TypeFor[uint32](),
	TypeSint32:  reflect.TypeFor[int32](),
	TypeUint64:  reflect.TypeFor[uint64](),
	TypeSint64:  reflect.TypeFor[int64](),
	TypeFloat:   reflect.TypeFor[float32](),
	TypeDouble:  reflect.TypeFor[float64](),
	TypePointer: reflect.TypeFor[unsafe.Pointer](),
}

func reflectType(t Type) (reflect.Type, error) {
	if t == TypeVoid || int(t) >= len(reflectTypes) {
		return nil, fmt.Errorf("%w: slot of type %v", ErrBadLayout, t)
	}
	return reflectTypes[t], nil
}

func (reflectMechanism) Compile(ret Type, args []Type) (Signature, error) {
	if len(args) > MaxArgs+2 {
		return nil, fmt.Errorf("%w: %d slots", ErrBadLayout, len(args))
	}
	sig := &reflectSignature{in: make([]reflect.Type, len(args))}
	for i, t := range args {
		rt, err := reflectType(t)
		if err != nil {
			return nil, err
		}
		sig.in[i] = rt
	}
	var out []reflect.Type
	if ret != TypeVoid {
		rt, err := reflectType(ret)
		if err != nil {
			return nil, err
		}
		sig.out = rt
		out = []reflect.Type{rt}
	}
	sig.fn = reflect.FuncOf(sig.in, out, false)
	return sig, nil
}

type reflectSignature struct {
	fn  reflect.Type
	in  []reflect.Type
	out reflect.Type
}

func (s *reflectSignature) value(fn Address) (reflect.Value, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: %T is not a function", ErrSignatureMismatch, fn)
	}
	if v.Type() != s.fn {
		if !v.Type().ConvertibleTo(s.fn) {
			return reflect.Value{}, fmt.Errorf("%w: have %v, want %v", ErrSignatureMismatch, v.Type(), s.fn)
		}
		v = v.Convert(s.fn)
	}
	return v, nil
}

func (s *reflectSignature) Check(fn Address) error {
	_, err := s.value(fn)
	return err
}

func (s *reflectSignature) Call(fn Address, ret unsafe.Pointer, args []unsafe.Pointer) {
	v, err := s.value(fn)
	if err != nil {
		panic(err)
	}
	in := make([]reflect.Value, len(s.in))
	for i, rt := range s.in {
		in[i] = reflect.NewAt(rt, args[i]).Elem()
	}
	out := v.Call(in)
	if s.out != nil && ret != nil {
		reflect.NewAt(s.out, ret).Elem().Set(out[0])
	}
}

func (s *reflectSignature) Closure(h Handler) (Address, func(), error) {
	fv := reflect.MakeFunc(s.fn, func(in []reflect.Value) []reflect.Value {
		args := make([]unsafe.Pointer, len(in))
		for i, v := range in {
			p := reflect.New(s.in[i])
			p.Elem().Set(v)
			args[i] = p.UnsafePointer()
		}
		if s.out == nil {
			h(nil, args)
			return nil
		}
		r := reflect.New(s.out)
		h(r.UnsafePointer(), args)
		return []reflect.Value{r.Elem()}
	})
	return fv.Interface(), func() {}, nil
}

// AddressOf returns a printable entry-point value of fn.
func AddressOf(fn Address) uintptr {
	switch a := fn.(type) {
	case nil:
		return 0
	case uintptr:
		return a
	case unsafe.Pointer:
		return uintptr(a)
	}
	v := reflect.ValueOf(fn)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.UnsafePointer:
		return v.Pointer()
	}
	return 0
}
