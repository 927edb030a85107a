// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package host provides reference marshalling and object identity for
// callable bridges embedded in Go programs.
//
// Dynamic representations: bool for booleans, int64 for signed integers
// and enumerations, uint64 for unsigned integers and type identifiers,
// float64 for floating types, string for utf8 and filename, []Value for C
// arrays, *Object and *Record for object and record references,
// *callable.NativeError for errors and unsafe.Pointer for anything else.
package host

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"code.hybscloud.com/callable"
)

// ErrUnsupported reports a type the reference marshaller cannot convert.
var ErrUnsupported = errors.New("host: unsupported type")

// Marshaller converts values between Go and native slots.
//
// Values passed with transfer none are returned as temporaries that the
// bridge keeps alive for the duration of the call. Values whose ownership
// moves to the native side are retained by the Marshaller.
type Marshaller struct {
	objects *Objects

	mu    sync.Mutex
	owned []any
}

// NewMarshaller creates a marshaller. objects may be nil, in which case a
// private identity table is used.
func NewMarshaller(objects *Objects) *Marshaller {
	if objects == nil {
		objects = NewObjects()
	}
	return &Marshaller{objects: objects}
}

// Objects returns the identity table of the marshaller.
func (m *Marshaller) Objects() *Objects { return m.objects }

// Owned returns the number of buffers handed over to the native side.
func (m *Marshaller) Owned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owned)
}

func (m *Marshaller) keep(transfer callable.Transfer, buf any) []callable.Value {
	if transfer == callable.TransferNone {
		return []callable.Value{buf}
	}
	m.mu.Lock()
	m.owned = append(m.owned, buf)
	m.mu.Unlock()
	return nil
}

// ToNative implements callable.Marshaller.
func (m *Marshaller) ToNative(t *callable.TypeInfo, transfer callable.Transfer, v callable.Value, dst unsafe.Pointer, f *callable.Frame) ([]callable.Value, error) {
	if dst == nil {
		return nil, nil
	}
	nt := callable.MapType(t, callable.In)
	switch t.Tag {
	case callable.TagBoolean:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		var n int64
		if b {
			n = 1
		}
		callable.StoreInt(nt, dst, n)
		return nil, nil
	case callable.TagFloat, callable.TagDouble:
		x, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		callable.StoreFloat(nt, dst, x)
		return nil, nil
	case callable.TagUTF8, callable.TagFilename:
		return m.stringToNative(transfer, v, dst)
	case callable.TagArray:
		return m.arrayToNative(t, transfer, v, dst, f)
	case callable.TagInterface:
		return m.ifaceToNative(t, transfer, v, dst)
	case callable.TagError:
		e, ok := v.(*callable.NativeError)
		if v != nil && !ok {
			return nil, fmt.Errorf("%w: %T as error", ErrUnsupported, v)
		}
		*(**callable.NativeError)(dst) = e
		return nil, nil
	case callable.TagVoid:
		return nil, pointerToNative(v, dst)
	}
	if nt != callable.TypePointer {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		callable.StoreInt(nt, dst, n)
		return nil, nil
	}
	return nil, pointerToNative(v, dst)
}

// ToDynamic implements callable.Marshaller.
func (m *Marshaller) ToDynamic(t *callable.TypeInfo, transfer callable.Transfer, src unsafe.Pointer, f *callable.Frame) (callable.Value, error) {
	if src == nil {
		return nil, nil
	}
	nt := callable.MapType(t, callable.In)
	switch t.Tag {
	case callable.TagBoolean:
		return callable.LoadInt(nt, src) != 0, nil
	case callable.TagFloat, callable.TagDouble:
		return callable.LoadFloat(nt, src), nil
	case callable.TagUTF8, callable.TagFilename:
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return nil, nil
		}
		return callable.CString(p), nil
	case callable.TagArray:
		return m.arrayToDynamic(t, transfer, src, f)
	case callable.TagInterface:
		return m.ifaceToDynamic(t, transfer, src)
	case callable.TagError:
		e := *(**callable.NativeError)(src)
		if e == nil {
			return nil, nil
		}
		return e, nil
	case callable.TagVoid:
		return *(*unsafe.Pointer)(src), nil
	}
	switch nt {
	case callable.TypeUint8, callable.TypeUint16, callable.TypeUint32, callable.TypeUint64:
		return uint64(callable.LoadInt(nt, src)), nil
	case callable.TypeSint8, callable.TypeSint16, callable.TypeSint32, callable.TypeSint64:
		return callable.LoadInt(nt, src), nil
	}
	if t.Pointer {
		return *(*unsafe.Pointer)(src), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupported, t.Tag)
}

// CallerAlloc implements callable.Marshaller for records of known size.
func (m *Marshaller) CallerAlloc(t *callable.TypeInfo, dst unsafe.Pointer) (callable.Value, bool) {
	if t.Tag != callable.TagInterface || t.Interface == nil || t.Interface.Size == 0 {
		return nil, false
	}
	switch t.Interface.Kind {
	case callable.IfaceStruct, callable.IfaceUnion, callable.IfaceBoxed:
	default:
		return nil, false
	}
	r := NewRecord(t.Interface)
	*(*unsafe.Pointer)(dst) = r.ptr
	return r, true
}

func (m *Marshaller) stringToNative(transfer callable.Transfer, v callable.Value, dst unsafe.Pointer) ([]callable.Value, error) {
	var s string
	switch x := v.(type) {
	case nil:
		*(*unsafe.Pointer)(dst) = nil
		return nil, nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, fmt.Errorf("%w: %T as string", ErrUnsupported, v)
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	*(*unsafe.Pointer)(dst) = unsafe.Pointer(&buf[0])
	return m.keep(transfer, buf), nil
}

func (m *Marshaller) ifaceToNative(t *callable.TypeInfo, transfer callable.Transfer, v callable.Value, dst unsafe.Pointer) ([]callable.Value, error) {
	ii := t.Interface
	if ii == nil {
		return nil, pointerToNative(v, dst)
	}
	switch ii.Kind {
	case callable.IfaceEnum, callable.IfaceFlags:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		callable.StoreInt(callable.MapType(t, callable.In), dst, n)
		return nil, nil
	case callable.IfaceObject, callable.IfaceInterface:
		p, err := m.objects.UnwrapObject(v, ii)
		if err != nil {
			return nil, err
		}
		*(*unsafe.Pointer)(dst) = p
		return nil, nil
	case callable.IfaceStruct, callable.IfaceUnion, callable.IfaceBoxed:
		r, ok := v.(*Record)
		if v != nil && !ok {
			return nil, fmt.Errorf("%w: %T is not %s", ErrWrongKind, v, ii.QualifiedName())
		}
		if r == nil {
			*(*unsafe.Pointer)(dst) = nil
			return nil, nil
		}
		*(*unsafe.Pointer)(dst) = r.ptr
		return m.keep(transfer, r), nil
	}
	return nil, pointerToNative(v, dst)
}

func (m *Marshaller) ifaceToDynamic(t *callable.TypeInfo, transfer callable.Transfer, src unsafe.Pointer) (callable.Value, error) {
	ii := t.Interface
	if ii == nil {
		return *(*unsafe.Pointer)(src), nil
	}
	switch ii.Kind {
	case callable.IfaceEnum, callable.IfaceFlags:
		return callable.LoadInt(callable.MapType(t, callable.In), src), nil
	case callable.IfaceObject, callable.IfaceInterface:
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return nil, nil
		}
		obj := m.objects.Register(p, ii)
		if transfer != callable.TransferNone {
			obj.refs.Add(1)
		}
		return obj, nil
	case callable.IfaceStruct, callable.IfaceUnion, callable.IfaceBoxed:
		return m.objects.WrapRecord(*(*unsafe.Pointer)(src), ii, transfer != callable.TransferNone)
	}
	return *(*unsafe.Pointer)(src), nil
}

func pointerToNative(v callable.Value, dst unsafe.Pointer) error {
	switch x := v.(type) {
	case nil:
		*(*unsafe.Pointer)(dst) = nil
	case unsafe.Pointer:
		*(*unsafe.Pointer)(dst) = x
	case *Object:
		*(*unsafe.Pointer)(dst) = x.ptr
	case *Record:
		*(*unsafe.Pointer)(dst) = x.ptr
	case uintptr:
		*(*uintptr)(dst) = x
	case *callable.Trampoline:
		switch a := x.Address().(type) {
		case uintptr:
			*(*uintptr)(dst) = a
		case unsafe.Pointer:
			*(*unsafe.Pointer)(dst) = a
		default:
			return fmt.Errorf("%w: trampoline address %T", ErrUnsupported, a)
		}
	default:
		return fmt.Errorf("%w: %T as pointer", ErrUnsupported, v)
	}
	return nil
}

func toBool(v callable.Value) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	}
	n, err := toInt(v)
	return n != 0, err
}

func toInt(v callable.Value) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case uintptr:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("host: %v is not an integer", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T as integer", ErrUnsupported, v)
}

func toFloat(v callable.Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	n, err := toInt(v)
	return float64(n), err
}
