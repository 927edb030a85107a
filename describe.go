// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import "strings"

// TypeTag is the abstract kind of a described type.
type TypeTag uint8

const (
	TagVoid TypeTag = iota
	TagBoolean
	TagInt8
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
	TagFloat
	TagDouble
	TagGType
	TagUTF8
	TagFilename
	TagArray
	TagInterface
	TagGList
	TagGSList
	TagGHash
	TagError
	TagUnichar
)

var tagNames = [...]string{
	TagVoid:      "void",
	TagBoolean:   "bool",
	TagInt8:      "int8",
	TagUint8:     "uint8",
	TagInt16:     "int16",
	TagUint16:    "uint16",
	TagInt32:     "int32",
	TagUint32:    "uint32",
	TagInt64:     "int64",
	TagUint64:    "uint64",
	TagFloat:     "float",
	TagDouble:    "double",
	TagGType:     "gtype",
	TagUTF8:      "utf8",
	TagFilename:  "filename",
	TagArray:     "array",
	TagInterface: "interface",
	TagGList:     "glist",
	TagGSList:    "gslist",
	TagGHash:     "ghash",
	TagError:     "error",
	TagUnichar:   "unichar",
}

func (t TypeTag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// ArrayType distinguishes array representations.
type ArrayType uint8

const (
	ArrayC ArrayType = iota
	ArrayGArray
	ArrayPtrArray
	ArrayByteArray
)

// InterfaceKind is the kind of a named type referenced by TagInterface.
type InterfaceKind uint8

const (
	IfaceInvalid InterfaceKind = iota
	IfaceEnum
	IfaceFlags
	IfaceObject
	IfaceInterface
	IfaceStruct
	IfaceUnion
	IfaceCallback
	IfaceBoxed
)

// InterfaceInfo describes a named type: an enum, a class, a record or a
// callback type.
type InterfaceInfo struct {
	Kind      InterfaceKind
	Namespace string
	Name      string
	Storage   TypeTag // enums and flags
	Size      uintptr // records
	Callback  *Info   // callbacks
}

// QualifiedName returns Namespace.Name.
func (ii *InterfaceInfo) QualifiedName() string {
	if ii.Namespace == "" {
		return ii.Name
	}
	return ii.Namespace + "." + ii.Name
}

// IsObject reports whether values of the type are object references.
func (ii *InterfaceInfo) IsObject() bool {
	return ii.Kind == IfaceObject || ii.Kind == IfaceInterface
}

// TypeInfo is a described type. It is owned by the introspection
// repository and referenced, never copied, by call plans.
type TypeInfo struct {
	Tag       TypeTag
	Pointer   bool
	Array     ArrayType
	Length    int // C array length argument index, -1 when absent
	Fixed     int // C array fixed size, -1 when absent
	Zero      bool
	Elem      *TypeInfo
	Interface *InterfaceInfo
}

// Direction is the data flow of a parameter.
type Direction uint8

const (
	In Direction = iota
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	}
	return "unknown"
}

// Transfer is the ownership-transfer rule of a marshalled value.
type Transfer uint8

const (
	TransferNone Transfer = iota
	TransferContainer
	TransferFull
)

func (t Transfer) String() string {
	switch t {
	case TransferNone:
		return "none"
	case TransferContainer:
		return "container"
	case TransferFull:
		return "full"
	}
	return "unknown"
}

// ArgInfo describes one declared parameter.
type ArgInfo struct {
	Name            string
	Type            *TypeInfo
	Direction       Direction
	Transfer        Transfer
	CallerAllocates bool
	Closure         int // user-data companion index, -1 when absent
	Destroy         int // destroy-notify companion index, -1 when absent
}

// Kind is the kind of a callable description.
type Kind uint8

const (
	KindFunction Kind = iota + 1
	KindCallback
	KindSignal
	KindVFunc
)

func (k Kind) abbrev() string {
	switch k {
	case KindFunction:
		return "fun"
	case KindSignal:
		return "sig"
	case KindVFunc:
		return "vfn"
	}
	return "cbk"
}

// Flags are callable description flags.
type Flags uint8

const (
	FlagMethod Flags = 1 << iota
	FlagConstructor
	FlagThrows
)

// Info describes a callable: a function, method, callback type, signal or
// virtual function.
type Info struct {
	Kind       Kind
	Namespace  string
	Container  *InterfaceInfo
	Name       string
	Symbol     string
	Flags      Flags
	Args       []ArgInfo
	Return     *TypeInfo
	CallerOwns Transfer
}

// QualifiedName returns Namespace[.Container].Name.
func (in *Info) QualifiedName() string {
	var b strings.Builder
	if in.Namespace != "" {
		b.WriteString(in.Namespace)
		b.WriteByte('.')
	}
	if in.Container != nil {
		b.WriteString(in.Container.Name)
		b.WriteByte('.')
	}
	b.WriteString(in.Name)
	return b.String()
}
