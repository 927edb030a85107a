// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/callable"
	"github.com/launix-de/NonLockingReadMap"
)

// ErrWrongKind reports a dynamic value of the wrong wrapper kind.
var ErrWrongKind = errors.New("host: wrong value kind")

// Object is the dynamic wrapper of a native object reference.
type Object struct {
	Type *callable.InterfaceInfo
	ptr  unsafe.Pointer
	refs atomix.Uint32
}

// Pointer returns the native address.
func (o *Object) Pointer() unsafe.Pointer { return o.ptr }

// Refs returns the number of owned references taken by the dynamic side.
func (o *Object) Refs() uint32 { return o.refs.Load() }

// Record is the dynamic wrapper of a native struct, union or boxed value.
type Record struct {
	Type *callable.InterfaceInfo
	ptr  unsafe.Pointer
	mem  []uint64
}

// NewRecord allocates a zeroed record of iface's size.
func NewRecord(iface *callable.InterfaceInfo) *Record {
	mem := make([]uint64, (iface.Size+7)/8+1)
	return &Record{Type: iface, ptr: unsafe.Pointer(&mem[0]), mem: mem}
}

// Pointer returns the native address.
func (r *Record) Pointer() unsafe.Pointer { return r.ptr }

// Bytes returns the record's memory when its size is known.
func (r *Record) Bytes() []byte {
	if r.Type == nil || r.Type.Size == 0 || r.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(r.ptr), r.Type.Size)
}

type objectEntry struct {
	addr uintptr
	obj  *Object
}

func (e objectEntry) GetKey() uintptr { return e.addr }

func (e objectEntry) ComputeSize() uint { return 32 }

// Objects keeps object identity: one wrapper per native address.
type Objects struct {
	table NonLockingReadMap.NonLockingReadMap[objectEntry, uintptr]
	mu    sync.Mutex
}

// NewObjects creates an empty identity table.
func NewObjects() *Objects {
	return &Objects{table: NonLockingReadMap.New[objectEntry, uintptr]()}
}

// Len returns the number of known objects.
func (o *Objects) Len() int { return len(o.table.GetAll()) }

// Lookup returns the wrapper of p, or nil.
func (o *Objects) Lookup(p unsafe.Pointer) *Object {
	if e := o.table.Get(uintptr(p)); e != nil {
		return e.obj
	}
	return nil
}

// Register returns the wrapper of p, creating it with type iface.
func (o *Objects) Register(p unsafe.Pointer, iface *callable.InterfaceInfo) *Object {
	if obj := o.Lookup(p); obj != nil {
		return obj
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if obj := o.Lookup(p); obj != nil {
		return obj
	}
	obj := &Object{Type: iface, ptr: p}
	o.table.Set(&objectEntry{addr: uintptr(p), obj: obj})
	return obj
}

// Forget drops the wrapper of p.
func (o *Objects) Forget(p unsafe.Pointer) {
	o.mu.Lock()
	o.table.Remove(uintptr(p))
	o.mu.Unlock()
}

func (o *Objects) WrapObject(p unsafe.Pointer, own bool) (callable.Value, error) {
	if p == nil {
		return nil, nil
	}
	obj := o.Register(p, nil)
	if own {
		obj.refs.Add(1)
	}
	return obj, nil
}

func (o *Objects) UnwrapObject(v callable.Value, iface *callable.InterfaceInfo) (unsafe.Pointer, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *Object:
		return x.ptr, nil
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrWrongKind, v, name(iface))
}

func (o *Objects) WrapRecord(p unsafe.Pointer, iface *callable.InterfaceInfo, own bool) (callable.Value, error) {
	if p == nil {
		return nil, nil
	}
	return &Record{Type: iface, ptr: p}, nil
}

func (o *Objects) UnwrapRecord(v callable.Value, iface *callable.InterfaceInfo) (unsafe.Pointer, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *Record:
		return x.ptr, nil
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrWrongKind, v, name(iface))
}

func name(iface *callable.InterfaceInfo) string {
	if iface == nil {
		return "a record"
	}
	return iface.QualifiedName()
}
