// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Invoke calls the native function of p with dynamic arguments.
//
// The receiver, when present, is args[0]; the remaining arguments fill the
// non-internal, non-out parameters in declaration order. Missing trailing
// arguments are nil and extra arguments are ignored.
//
// On success the results are the return value (unless void) followed by
// every non-internal out and inout parameter in declaration order; a
// callable that reports errors and has no other result returns true. When
// the native side reports an error, the results are the return value (or
// false) followed by the error message and code, and no outputs.
//
// The returned error is reserved for failures of the bridge itself.
// The guard is released for the duration of the native call.
func (b *Bridge) Invoke(p *Plan, args ...Value) (results []Value, err error) {
	if p.address == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAddress, p)
	}
	b.held(func() {
		results, err = b.invoke(p, args)
	})
	return results, err
}

func isVoid(t *TypeInfo) bool {
	return t == nil || (t.Tag == TagVoid && !t.Pointer)
}

func (b *Bridge) marshaller() (Marshaller, error) {
	if b.marsh == nil {
		return nil, ErrNoMarshaller
	}
	return b.marsh, nil
}

func (b *Bridge) invoke(p *Plan, args []Value) ([]Value, error) {
	arg := func(i int) Value {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	nself := 0
	if p.hasSelf {
		nself = 1
	}
	n := nself + len(p.params)
	slots := make([]Argument, n)
	redirect := make([]unsafe.Pointer, n+1)
	frame := make([]unsafe.Pointer, 0, n+1)
	f := &Frame{params: p.params, values: make([]unsafe.Pointer, len(p.params))}

	if p.hasSelf {
		recv, err := b.unwrapReceiver(p.info.Container, arg(0))
		if err != nil {
			return nil, fmt.Errorf("callable: %s: receiver: %w", p.info.QualifiedName(), err)
		}
		slots[0].SetPointer(recv)
		frame = append(frame, slots[0].Addr(TypePointer))
	}

	// Frame pointers are prepared before any marshalling, because
	// companions may be written ahead of their declaration.
	for i := range p.params {
		argi := i + nself
		par := &p.params[i]
		f.values[i] = slots[argi].Addr(par.Native())
		if par.Direction == In {
			frame = append(frame, f.values[i])
		} else {
			redirect[argi] = f.values[i]
			frame = append(frame, unsafe.Pointer(&redirect[argi]))
		}
	}

	var temps []Value
	allocated := make(map[int]Value)
	argi := nself
	for i := range p.params {
		par := &p.params[i]
		if par.Internal {
			continue
		}
		if par.Direction != Out {
			m, err := b.marshaller()
			if err != nil {
				return nil, err
			}
			held, err := m.ToNative(par.Type, TransferNone, arg(argi), f.values[i], f)
			if err != nil {
				return nil, fmt.Errorf("callable: %s: argument `%s': %w", p.info.QualifiedName(), par.Name(), err)
			}
			temps = append(temps, held...)
			argi++
		} else if par.CallerAllocates() && b.marsh != nil {
			// Caller-allocated outputs are passed like in pointers.
			if v, ok := b.marsh.CallerAlloc(par.Type, slots[i+nself].Addr(TypePointer)); ok {
				frame[i+nself] = slots[i+nself].Addr(TypePointer)
				allocated[i] = v
			}
		}
	}

	var nerr *NativeError
	if p.throws {
		redirect[n] = unsafe.Pointer(&nerr)
		frame = append(frame, unsafe.Pointer(&redirect[n]))
	}

	var ret Argument
	b.guard.Leave(func() {
		p.sig.Call(p.address, ret.Addr(p.rabi), frame)
	})
	runtime.KeepAlive(temps)
	runtime.KeepAlive(slots)

	var results []Value
	if !isVoid(p.ret.Type) {
		m, err := b.marshaller()
		if err != nil {
			return nil, err
		}
		v, err := m.ToDynamic(p.ret.Type, p.ret.Transfer, ret.Addr(p.rabi), f)
		if err != nil {
			return nil, fmt.Errorf("callable: %s: return value: %w", p.info.QualifiedName(), err)
		}
		results = append(results, v)
	}

	if nerr != nil {
		if len(results) == 0 {
			results = append(results, false)
		}
		return append(results, nerr.Text(), int(nerr.Code)), nil
	}

	for i := range p.params {
		par := &p.params[i]
		if par.Internal || par.Direction == In {
			continue
		}
		if v, ok := allocated[i]; ok {
			results = append(results, v)
			continue
		}
		m, err := b.marshaller()
		if err != nil {
			return nil, err
		}
		v, err := m.ToDynamic(par.Type, par.Transfer, f.values[i], f)
		if err != nil {
			return nil, fmt.Errorf("callable: %s: argument `%s': %w", p.info.QualifiedName(), par.Name(), err)
		}
		results = append(results, v)
	}

	if len(results) == 0 && p.throws {
		results = append(results, true)
	}
	return results, nil
}

func (b *Bridge) unwrapReceiver(container *InterfaceInfo, v Value) (unsafe.Pointer, error) {
	if p, ok := v.(unsafe.Pointer); ok {
		return p, nil
	}
	if b.objects == nil {
		return nil, fmt.Errorf("cannot unwrap %T without an object registry", v)
	}
	if container != nil && container.IsObject() {
		return b.objects.UnwrapObject(v, container)
	}
	return b.objects.UnwrapRecord(v, container)
}

func (b *Bridge) wrapReceiver(container *InterfaceInfo, p unsafe.Pointer) (Value, error) {
	if b.objects == nil {
		return p, nil
	}
	if container != nil && container.IsObject() {
		return b.objects.WrapObject(p, false)
	}
	return b.objects.WrapRecord(p, container, false)
}
