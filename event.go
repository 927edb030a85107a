// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"fmt"
	"unsafe"
)

// NativeValue is a self-describing native value: a described type and the
// slot holding a value of it.
type NativeValue struct {
	Type *TypeInfo
	Arg  Argument
}

// Addr returns the address of the value in its native type.
func (v *NativeValue) Addr() unsafe.Pointer {
	return v.Arg.Addr(MapType(v.Type, In))
}

// EventClosure notifies a dynamic observer with positional native values
// and takes exactly one value back. Native code calls Marshal.
type EventClosure struct {
	bridge  *Bridge
	target  Target
	serial  Serial
	invalid bool
}

// MakeEventClosure creates an event closure invoking target, which must
// be a Callable, a Func-shaped function or a *Coroutine.
func (b *Bridge) MakeEventClosure(target Value) (*EventClosure, error) {
	t, err := NewTarget(nil, target)
	if err != nil {
		return nil, err
	}
	return &EventClosure{bridge: b, target: t, serial: nextSerial()}, nil
}

// Serial returns the closure's serial number.
func (e *EventClosure) Serial() Serial { return e.serial }

// Invalidate releases the target. Later calls of Marshal panic.
func (e *EventClosure) Invalidate() {
	e.bridge.held(func() {
		e.invalid = true
		e.target = Target{}
	})
}

// Marshal invokes the target with params converted to dynamic values and
// stores its single result into ret, if ret is not nil. Failures are
// re-raised with a panic after the guard is released.
func (e *EventClosure) Marshal(ret *NativeValue, params []NativeValue) {
	var failure error
	e.bridge.guard.Enter(func() {
		if e.invalid {
			failure = ErrTrampolineDestroyed
			return
		}
		failure = e.marshal(ret, params)
	})
	if failure != nil {
		panic(&CallbackError{Name: fmt.Sprintf("closure#%d", e.serial), Err: failure})
	}
}

func (e *EventClosure) marshal(ret *NativeValue, params []NativeValue) error {
	m, err := e.bridge.marshaller()
	if err != nil {
		return err
	}
	e.target.prepare()
	in := make([]Value, len(params))
	for i := range params {
		pv := &params[i]
		v, err := m.ToDynamic(pv.Type, TransferNone, pv.Addr(), nil)
		if err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		in[i] = v
	}
	outs, err := e.target.activate(in)
	if err != nil {
		return err
	}
	if ret == nil || isVoid(ret.Type) {
		return nil
	}
	var v Value
	if len(outs) > 0 {
		v = outs[0]
	}
	_, err = m.ToNative(ret.Type, TransferNone, v, ret.Addr(), nil)
	return err
}
