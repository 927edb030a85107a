// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package typelib loads namespace descriptions and turns them into
// callable descriptions.
//
// Namespaces are written in HCL:
//
//	namespace "Demo" {
//	  library = "libdemo.so"
//
//	  enum "Mode" {
//	    storage = "uint8"
//	  }
//
//	  function "sum" {
//	    symbol = "demo_sum"
//	    return { type = "int32" }
//	    arg "values" {
//	      type    = "array"
//	      element = "int32"
//	      length  = 1
//	    }
//	    arg "n" { type = "int32" }
//	  }
//	}
//
// and may be compiled to CBOR with [Encode] for faster loading.
package typelib

// Namespace is the declaration of one namespace.
type Namespace struct {
	Name      string      `hcl:"name,label" cbor:"name"`
	Library   string      `hcl:"library,optional" cbor:"library,omitempty"`
	Enums     []*Enum     `hcl:"enum,block" cbor:"enums,omitempty"`
	Classes   []*Class    `hcl:"class,block" cbor:"classes,omitempty"`
	Callbacks []*Function `hcl:"callback,block" cbor:"callbacks,omitempty"`
	Functions []*Function `hcl:"function,block" cbor:"functions,omitempty"`
}

// Enum declares an enumeration or, with Flags set, a bit set.
type Enum struct {
	Name    string `hcl:"name,label" cbor:"name"`
	Storage string `hcl:"storage,optional" cbor:"storage,omitempty"`
	Flags   bool   `hcl:"flags,optional" cbor:"flags,omitempty"`
}

// Class declares a named type with members. Kind is one of object
// (default), interface, struct, union or boxed.
type Class struct {
	Name    string      `hcl:"name,label" cbor:"name"`
	Kind    string      `hcl:"kind,optional" cbor:"kind,omitempty"`
	Size    int         `hcl:"size,optional" cbor:"size,omitempty"`
	Methods []*Function `hcl:"method,block" cbor:"methods,omitempty"`
	Signals []*Function `hcl:"signal,block" cbor:"signals,omitempty"`
	VFuncs  []*Function `hcl:"vfunc,block" cbor:"vfuncs,omitempty"`
}

// Function declares a function, method, callback type, signal or
// virtual function.
type Function struct {
	Name        string  `hcl:"name,label" cbor:"name"`
	Symbol      string  `hcl:"symbol,optional" cbor:"symbol,omitempty"`
	Static      bool    `hcl:"static,optional" cbor:"static,omitempty"`
	Constructor bool    `hcl:"constructor,optional" cbor:"constructor,omitempty"`
	Throws      bool    `hcl:"throws,optional" cbor:"throws,omitempty"`
	Return      *Result `hcl:"return,block" cbor:"return,omitempty"`
	Args        []*Arg  `hcl:"arg,block" cbor:"args,omitempty"`
}

// Result declares a return value.
type Result struct {
	Type           string `hcl:"type" cbor:"type"`
	Transfer       string `hcl:"transfer,optional" cbor:"transfer,omitempty"`
	Pointer        bool   `hcl:"pointer,optional" cbor:"pointer,omitempty"`
	Element        string `hcl:"element,optional" cbor:"element,omitempty"`
	Length         *int   `hcl:"length,optional" cbor:"length,omitempty"`
	Fixed          *int   `hcl:"fixed,optional" cbor:"fixed,omitempty"`
	ZeroTerminated bool   `hcl:"zero_terminated,optional" cbor:"zero_terminated,omitempty"`
}

// Arg declares a parameter. Direction is in (default), out or inout.
// Transfer is none (default), container or full. Closure, Destroy and
// Length are indices of companion parameters.
type Arg struct {
	Name            string `hcl:"name,label" cbor:"name"`
	Type            string `hcl:"type" cbor:"type"`
	Direction       string `hcl:"direction,optional" cbor:"direction,omitempty"`
	Transfer        string `hcl:"transfer,optional" cbor:"transfer,omitempty"`
	CallerAllocates bool   `hcl:"caller_allocates,optional" cbor:"caller_allocates,omitempty"`
	Closure         *int   `hcl:"closure,optional" cbor:"closure,omitempty"`
	Destroy         *int   `hcl:"destroy,optional" cbor:"destroy,omitempty"`
	Pointer         bool   `hcl:"pointer,optional" cbor:"pointer,omitempty"`
	Element         string `hcl:"element,optional" cbor:"element,omitempty"`
	Length          *int   `hcl:"length,optional" cbor:"length,omitempty"`
	Fixed           *int   `hcl:"fixed,optional" cbor:"fixed,omitempty"`
	ZeroTerminated  bool   `hcl:"zero_terminated,optional" cbor:"zero_terminated,omitempty"`
}

func (a *Arg) result() *Result {
	return &Result{
		Type:           a.Type,
		Transfer:       a.Transfer,
		Pointer:        a.Pointer,
		Element:        a.Element,
		Length:         a.Length,
		Fixed:          a.Fixed,
		ZeroTerminated: a.ZeroTerminated,
	}
}
