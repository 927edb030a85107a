// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import "unsafe"

// Value is a value of the dynamic side. nil is the absent value.
type Value = any

// Address is a native entry point. Its concrete form is defined by the
// Mechanism that calls it.
type Address = any

// Resolver resolves native symbols of a namespace's library.
type Resolver interface {
	ResolveSymbol(namespace, symbol string) (Address, error)
}

// Marshaller converts single values between the dynamic and native sides.
//
// ToNative writes v into the native slot at dst and returns temporaries
// that must stay alive for as long as the native side uses the slot.
// ToDynamic reads the native slot at src. CallerAlloc pre-allocates the
// storage of a caller-allocated output, stores its address at dst and
// returns the dynamic value that owns it.
type Marshaller interface {
	ToNative(t *TypeInfo, transfer Transfer, v Value, dst unsafe.Pointer, f *Frame) ([]Value, error)
	ToDynamic(t *TypeInfo, transfer Transfer, src unsafe.Pointer, f *Frame) (Value, error)
	CallerAlloc(t *TypeInfo, dst unsafe.Pointer) (Value, bool)
}

// Objects maps native object and record addresses to dynamic wrappers.
type Objects interface {
	WrapObject(p unsafe.Pointer, own bool) (Value, error)
	UnwrapObject(v Value, iface *InterfaceInfo) (unsafe.Pointer, error)
	WrapRecord(p unsafe.Pointer, iface *InterfaceInfo, own bool) (Value, error)
	UnwrapRecord(v Value, iface *InterfaceInfo) (unsafe.Pointer, error)
}

// Frame exposes the sibling slots of a call to a Marshaller, so that
// companions such as array lengths can be read or written.
type Frame struct {
	params []Param
	values []unsafe.Pointer
}

// Len returns the number of declared parameters.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.params)
}

// Param returns the descriptor of declared parameter i.
func (f *Frame) Param(i int) *Param {
	if f == nil || i < 0 || i >= len(f.params) {
		return nil
	}
	return &f.params[i]
}

// Value returns the address of declared parameter i's value in its native
// type, or nil when the slot is not addressable.
func (f *Frame) Value(i int) unsafe.Pointer {
	if f == nil || i < 0 || i >= len(f.values) {
		return nil
	}
	return f.values[i]
}
