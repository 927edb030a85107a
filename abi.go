// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"math"
	"unsafe"
)

// Type is a native ABI type tag.
type Type uint8

const (
	TypeVoid Type = iota
	TypeUint8
	TypeSint8
	TypeUint16
	TypeSint16
	TypeUint32
	TypeSint32
	TypeUint64
	TypeSint64
	TypeFloat
	TypeDouble
	TypePointer
)

var typeNames = [...]string{
	TypeVoid:    "void",
	TypeUint8:   "uint8",
	TypeSint8:   "sint8",
	TypeUint16:  "uint16",
	TypeSint16:  "sint16",
	TypeUint32:  "uint32",
	TypeSint32:  "sint32",
	TypeUint64:  "uint64",
	TypeSint64:  "sint64",
	TypeFloat:   "float",
	TypeDouble:  "double",
	TypePointer: "pointer",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "invalid"
}

// Size returns the storage size of a value of type t.
func (t Type) Size() uintptr {
	switch t {
	case TypeUint8, TypeSint8:
		return 1
	case TypeUint16, TypeSint16:
		return 2
	case TypeUint32, TypeSint32, TypeFloat:
		return 4
	case TypeUint64, TypeSint64, TypeDouble:
		return 8
	case TypePointer:
		return unsafe.Sizeof(uintptr(0))
	}
	return 0
}

// typeGType is the platform-width unsigned type of type identifiers.
var typeGType = func() Type {
	if unsafe.Sizeof(uintptr(0)) == 4 {
		return TypeUint32
	}
	return TypeUint64
}()

// simpleType maps primitive tags; ok is false for anything structured.
func simpleType(tag TypeTag) (Type, bool) {
	switch tag {
	case TagVoid:
		return TypeVoid, true
	case TagBoolean:
		return TypeUint32, true
	case TagInt8:
		return TypeSint8, true
	case TagUint8:
		return TypeUint8, true
	case TagInt16:
		return TypeSint16, true
	case TagUint16:
		return TypeUint16, true
	case TagInt32:
		return TypeSint32, true
	case TagUint32:
		return TypeUint32, true
	case TagInt64:
		return TypeSint64, true
	case TagUint64:
		return TypeUint64, true
	case TagFloat:
		return TypeFloat, true
	case TagDouble:
		return TypeDouble, true
	case TagGType:
		return typeGType, true
	}
	return TypeVoid, false
}

// MapType maps a described type passed in direction dir to its native ABI
// type. Non-in directions and indirect types are passed by pointer;
// enumerations use their storage type. Unrecognized kinds map to
// TypePointer.
func MapType(t *TypeInfo, dir Direction) Type {
	if dir != In || t == nil || t.Pointer {
		return TypePointer
	}
	if nt, ok := simpleType(t.Tag); ok {
		return nt
	}
	if t.Tag == TagInterface && t.Interface != nil {
		switch t.Interface.Kind {
		case IfaceEnum, IfaceFlags:
			if nt, ok := simpleType(t.Interface.Storage); ok {
				return nt
			}
		}
	}
	return TypePointer
}

// Argument is storage for one native slot value. Values are read and
// written through Addr so that pointers stay visible to the collector.
type Argument struct {
	p unsafe.Pointer
	w uint64
}

// Addr returns the address holding a value of native type t.
func (a *Argument) Addr(t Type) unsafe.Pointer {
	if t == TypePointer {
		return unsafe.Pointer(&a.p)
	}
	return unsafe.Pointer(&a.w)
}

// Pointer returns the slot as a pointer.
func (a *Argument) Pointer() unsafe.Pointer { return a.p }

// SetPointer stores p.
func (a *Argument) SetPointer(p unsafe.Pointer) { a.p = p }

// Int64 reads the slot as a signed value of type t.
func (a *Argument) Int64(t Type) int64 { return LoadInt(t, a.Addr(t)) }

// SetInt64 stores v truncated to type t.
func (a *Argument) SetInt64(t Type, v int64) { StoreInt(t, a.Addr(t), v) }

// Float64 reads the slot as a floating value of type t.
func (a *Argument) Float64(t Type) float64 { return LoadFloat(t, a.Addr(t)) }

// SetFloat64 stores v as type t.
func (a *Argument) SetFloat64(t Type, v float64) { StoreFloat(t, a.Addr(t), v) }

// LoadInt reads an integer of native type t at p, extending to 64 bits.
func LoadInt(t Type, p unsafe.Pointer) int64 {
	switch t {
	case TypeUint8:
		return int64(*(*uint8)(p))
	case TypeSint8:
		return int64(*(*int8)(p))
	case TypeUint16:
		return int64(*(*uint16)(p))
	case TypeSint16:
		return int64(*(*int16)(p))
	case TypeUint32:
		return int64(*(*uint32)(p))
	case TypeSint32:
		return int64(*(*int32)(p))
	case TypeUint64, TypeSint64:
		return *(*int64)(p)
	case TypePointer:
		return int64(*(*uintptr)(p))
	case TypeFloat:
		return int64(*(*float32)(p))
	case TypeDouble:
		return int64(*(*float64)(p))
	}
	return 0
}

// StoreInt writes v truncated to native type t at p.
func StoreInt(t Type, p unsafe.Pointer, v int64) {
	switch t {
	case TypeUint8:
		*(*uint8)(p) = uint8(v)
	case TypeSint8:
		*(*int8)(p) = int8(v)
	case TypeUint16:
		*(*uint16)(p) = uint16(v)
	case TypeSint16:
		*(*int16)(p) = int16(v)
	case TypeUint32:
		*(*uint32)(p) = uint32(v)
	case TypeSint32:
		*(*int32)(p) = int32(v)
	case TypeUint64, TypeSint64:
		*(*int64)(p) = v
	case TypeFloat:
		*(*float32)(p) = float32(v)
	case TypeDouble:
		*(*float64)(p) = float64(v)
	}
}

// LoadFloat reads a float or double at p.
func LoadFloat(t Type, p unsafe.Pointer) float64 {
	switch t {
	case TypeFloat:
		return float64(*(*float32)(p))
	case TypeDouble:
		return *(*float64)(p)
	}
	return float64(LoadInt(t, p))
}

// StoreFloat writes v at p as a float or double.
func StoreFloat(t Type, p unsafe.Pointer, v float64) {
	switch t {
	case TypeFloat:
		*(*float32)(p) = float32(v)
	case TypeDouble:
		*(*float64)(p) = v
	default:
		if v > math.MaxInt64 || v < math.MinInt64 {
			v = 0
		}
		StoreInt(t, p, int64(v))
	}
}
