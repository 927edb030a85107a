// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package typelib

import (
	"fmt"
	"strings"

	"code.hybscloud.com/callable"
)

var builtins = map[string]callable.TypeTag{
	"void":     callable.TagVoid,
	"bool":     callable.TagBoolean,
	"int8":     callable.TagInt8,
	"uint8":    callable.TagUint8,
	"int16":    callable.TagInt16,
	"uint16":   callable.TagUint16,
	"int32":    callable.TagInt32,
	"uint32":   callable.TagUint32,
	"int64":    callable.TagInt64,
	"uint64":   callable.TagUint64,
	"float":    callable.TagFloat,
	"double":   callable.TagDouble,
	"gtype":    callable.TagGType,
	"utf8":     callable.TagUTF8,
	"filename": callable.TagFilename,
	"error":    callable.TagError,
	"unichar":  callable.TagUnichar,
}

var classKinds = map[string]callable.InterfaceKind{
	"":          callable.IfaceObject,
	"object":    callable.IfaceObject,
	"interface": callable.IfaceInterface,
	"struct":    callable.IfaceStruct,
	"union":     callable.IfaceUnion,
	"boxed":     callable.IfaceBoxed,
}

func parseDirection(s string) (callable.Direction, error) {
	switch s {
	case "", "in":
		return callable.In, nil
	case "out":
		return callable.Out, nil
	case "inout":
		return callable.InOut, nil
	}
	return 0, fmt.Errorf("%w: direction %q", ErrInvalid, s)
}

func parseTransfer(s string) (callable.Transfer, error) {
	switch s {
	case "", "none":
		return callable.TransferNone, nil
	case "container":
		return callable.TransferContainer, nil
	case "full":
		return callable.TransferFull, nil
	}
	return 0, fmt.Errorf("%w: transfer %q", ErrInvalid, s)
}

func index(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

// typeOf compiles a type expression.
func (s *space) typeOf(r *Result) (*callable.TypeInfo, error) {
	t := &callable.TypeInfo{Pointer: r.Pointer, Length: index(r.Length), Fixed: index(r.Fixed), Zero: r.ZeroTerminated}
	switch name := r.Type; name {
	case "pointer":
		t.Tag, t.Pointer = callable.TagVoid, true
	case "array":
		if r.Element == "" {
			return nil, fmt.Errorf("%w: array without element type", ErrInvalid)
		}
		elem, err := s.typeOf(&Result{Type: r.Element})
		if err != nil {
			return nil, err
		}
		t.Tag, t.Pointer, t.Array, t.Elem = callable.TagArray, true, callable.ArrayC, elem
	default:
		if tag, ok := builtins[name]; ok {
			t.Tag = tag
			switch tag {
			case callable.TagUTF8, callable.TagFilename, callable.TagError:
				t.Pointer = true
			}
			break
		}
		ii, err := s.iface(name)
		if err != nil {
			return nil, err
		}
		t.Tag, t.Interface = callable.TagInterface, ii
		switch ii.Kind {
		case callable.IfaceEnum, callable.IfaceFlags:
		default:
			t.Pointer = true
		}
	}
	return t, nil
}

// iface resolves a local or a Namespace.Name reference.
func (s *space) iface(name string) (*callable.InterfaceInfo, error) {
	if ii, ok := s.ifaces[name]; ok {
		return ii, nil
	}
	if ns, local, ok := strings.Cut(name, "."); ok {
		if other, ok := s.repo.spaces[ns]; ok {
			if ii, ok := other.ifaces[local]; ok {
				return ii, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: type %q", ErrNotFound, name)
}
