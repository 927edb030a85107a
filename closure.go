// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Trampoline is a native entry point with the exact ABI of a call plan
// that invokes a dynamic target.
type Trampoline struct {
	bridge      *Bridge
	plan        *Plan
	target      Target
	autodestroy bool
	serial      Serial
	addr        Address
	free        func()
	active      int
	destroyed   bool
}

// MakeClosure exposes target as a native function with the signature of
// info. With autodestroy set the trampoline is destroyed at the first
// safe point after its first invocation completes.
func (b *Bridge) MakeClosure(info *Info, target Target, autodestroy bool) (t *Trampoline, err error) {
	if target.fn == nil && target.co == nil {
		return nil, ErrNotCallable
	}
	p, err := b.Build(info, nil)
	if err != nil {
		return nil, err
	}
	b.held(func() {
		t = &Trampoline{
			bridge:      b,
			plan:        p,
			target:      target,
			autodestroy: autodestroy,
			serial:      nextSerial(),
		}
		var addr Address
		var free func()
		addr, free, err = p.sig.Closure(t.handle)
		if err != nil {
			t, err = nil, &BuildError{Name: info.QualifiedName(), Op: "closure", Err: err}
			return
		}
		t.addr, t.free = addr, free
		b.live.add(t)
		b.log.Debug("trampoline created", "plan", p.String(), "serial", t.serial, "autodestroy", autodestroy)
	})
	return t, err
}

// Address returns the native entry point.
func (t *Trampoline) Address() Address { return t.addr }

// Plan returns the call plan the trampoline conforms to.
func (t *Trampoline) Plan() *Plan { return t.plan }

// Serial returns the trampoline's serial number.
func (t *Trampoline) Serial() Serial { return t.serial }

// Target returns the callback target.
func (t *Trampoline) Target() *Target { return &t.target }

// AutoDestroy reports whether the trampoline destroys itself after use.
func (t *Trampoline) AutoDestroy() bool { return t.autodestroy }

// Destroyed reports whether the trampoline has been destroyed.
func (t *Trampoline) Destroyed() bool {
	var d bool
	t.bridge.held(func() { d = t.destroyed })
	return d
}

func (t *Trampoline) String() string {
	return fmt.Sprintf("trampoline#%d (%#x): %s", t.serial, AddressOf(t.addr), t.plan.info.QualifiedName())
}

// Destroy frees the trampoline. When called from inside its own
// invocation, destruction is deferred to the next safe point.
func (t *Trampoline) Destroy() {
	g := t.bridge.guard
	t.bridge.held(func() {
		if t.active > 0 {
			g.schedule(t)
			return
		}
		t.release()
	})
}

// release frees the executable entry. Must be called with the guard held
// and never from inside the trampoline's own frame.
func (t *Trampoline) release() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if t.free != nil {
		t.free()
	}
	t.bridge.live.remove(t)
	t.bridge.log.Debug("trampoline destroyed", "serial", t.serial)
}

// handle is the entry of native calls. Failures of targets whose plan
// does not report errors are re-raised after the guard is released.
func (t *Trampoline) handle(ret unsafe.Pointer, args []unsafe.Pointer) {
	var failure error
	t.bridge.guard.Enter(func() {
		if t.destroyed {
			failure = ErrTrampolineDestroyed
			return
		}
		t.active++
		defer func() { t.active-- }()
		failure = t.invoke(ret, args)
		if t.autodestroy {
			t.bridge.guard.schedule(t)
		}
	})
	if failure != nil {
		panic(failure)
	}
}

func (t *Trampoline) invoke(ret unsafe.Pointer, args []unsafe.Pointer) error {
	b, p := t.bridge, t.plan
	t.target.prepare()
	nself := 0
	if p.hasSelf {
		nself = 1
	}
	f := &Frame{params: p.params, values: make([]unsafe.Pointer, len(p.params))}
	for i := range p.params {
		slot := args[i+nself]
		if p.params[i].Direction == In {
			f.values[i] = slot
		} else {
			f.values[i] = *(*unsafe.Pointer)(slot)
		}
	}

	in := make([]Value, 0, p.Visible())
	err := func() error {
		if p.hasSelf {
			v, err := b.wrapReceiver(p.info.Container, *(*unsafe.Pointer)(args[0]))
			if err != nil {
				return err
			}
			in = append(in, v)
		}
		for i := range p.params {
			par := &p.params[i]
			if par.Internal || par.Direction == Out {
				continue
			}
			m, err := b.marshaller()
			if err != nil {
				return err
			}
			v, err := m.ToDynamic(par.Type, TransferNone, f.values[i], f)
			if err != nil {
				return fmt.Errorf("argument `%s': %w", par.Name(), err)
			}
			in = append(in, v)
		}
		outs, err := t.target.activate(in)
		if err != nil {
			return err
		}
		return t.store(ret, args, f, outs)
	}()
	if err == nil {
		return nil
	}
	if !p.throws {
		return &CallbackError{Name: p.info.QualifiedName(), Err: err}
	}
	if ep := *(*unsafe.Pointer)(args[len(args)-1]); ep != nil {
		*(**NativeError)(ep) = NewNativeError(CallbackDomain, 1, err.Error())
	}
	return nil
}

// store marshals the target's results into the return slot and the
// non-internal out and inout parameters.
func (t *Trampoline) store(ret unsafe.Pointer, args []unsafe.Pointer, f *Frame, outs []Value) error {
	b, p := t.bridge, t.plan
	nself := 0
	if p.hasSelf {
		nself = 1
	}
	k := 0
	next := func() Value {
		var v Value
		if k < len(outs) {
			v = outs[k]
		}
		k++
		return v
	}
	if !isVoid(p.ret.Type) {
		m, err := b.marshaller()
		if err != nil {
			return err
		}
		held, err := m.ToNative(p.ret.Type, p.ret.Transfer, next(), ret, f)
		if err != nil {
			return fmt.Errorf("return value: %w", err)
		}
		if len(held) != 0 {
			b.log.Warn("callback return value transfer none, unsafe",
				"callable", p.info.QualifiedName(), "count", len(held))
		}
	}
	for i := range p.params {
		par := &p.params[i]
		if par.Internal || par.Direction == In {
			continue
		}
		v := next()
		m, err := b.marshaller()
		if err != nil {
			return err
		}
		if par.CallerAllocates() {
			if err := fill(m, par, v, *(*unsafe.Pointer)(args[i+nself]), f); err != nil {
				return fmt.Errorf("argument `%s': %w", par.Name(), err)
			}
			continue
		}
		dst := f.values[i]
		if dst == nil {
			continue
		}
		held, err := m.ToNative(par.Type, par.Transfer, v, dst, f)
		if err != nil {
			return fmt.Errorf("argument `%s': %w", par.Name(), err)
		}
		if len(held) != 0 {
			b.log.Warn("callback output transfer none, unsafe",
				"callable", p.info.QualifiedName(), "arg", par.Name(), "count", len(held))
		}
	}
	return nil
}

// fill copies v into the caller-allocated buffer buf.
func fill(m Marshaller, par *Param, v Value, buf unsafe.Pointer, f *Frame) error {
	var tmp Argument
	held, err := m.ToNative(par.Type, TransferNone, v, tmp.Addr(TypePointer), f)
	if err != nil {
		return err
	}
	src := tmp.Pointer()
	if iface := par.Type.Interface; buf != nil && src != nil && iface != nil && iface.Size > 0 {
		copy(unsafe.Slice((*byte)(buf), iface.Size), unsafe.Slice((*byte)(src), iface.Size))
	}
	runtime.KeepAlive(held)
	return nil
}
