// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"fmt"
	"unsafe"

	"code.hybscloud.com/callable"
)

// MaxArrayLen bounds the element count of arrays read from native memory.
const MaxArrayLen = 1 << 24

// ErrArrayLength reports a native array length that is negative or larger
// than MaxArrayLen.
var ErrArrayLength = errors.New("host: invalid array length")

func elements(v callable.Value) ([]callable.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []callable.Value:
		return x, nil
	case []string:
		out := make([]callable.Value, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case []int64:
		out := make([]callable.Value, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, nil
	case []byte:
		out := make([]callable.Value, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T as array", ErrUnsupported, v)
}

func (m *Marshaller) arrayToNative(t *callable.TypeInfo, transfer callable.Transfer, v callable.Value, dst unsafe.Pointer, f *callable.Frame) ([]callable.Value, error) {
	if t.Array != callable.ArrayC || t.Elem == nil {
		return nil, fmt.Errorf("%w: non-C array", ErrUnsupported)
	}
	items, err := elements(v)
	if err != nil {
		return nil, err
	}
	n := len(items)
	if t.Fixed >= 0 && n < t.Fixed {
		n = t.Fixed
	}
	total := n
	if t.Zero {
		total++
	}

	et := callable.MapType(t.Elem, callable.In)
	size := et.Size()
	var base unsafe.Pointer
	var buf any
	if total > 0 {
		if et == callable.TypePointer {
			ps := make([]unsafe.Pointer, total)
			base, buf = unsafe.Pointer(&ps[0]), ps
		} else {
			ws := make([]uint64, (uintptr(total)*size+7)/8)
			base, buf = unsafe.Pointer(&ws[0]), ws
		}
	}

	var temps []callable.Value
	for i, item := range items {
		held, err := m.ToNative(t.Elem, transfer, item, unsafe.Add(base, uintptr(i)*size), nil)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		temps = append(temps, held...)
	}
	*(*unsafe.Pointer)(dst) = base

	if lp, lv := f.Param(t.Length), f.Value(t.Length); lp != nil && lv != nil {
		callable.StoreInt(lp.Native(), lv, int64(len(items)))
	}
	if buf != nil {
		temps = append(temps, m.keep(transfer, buf)...)
	}
	return temps, nil
}

func (m *Marshaller) arrayToDynamic(t *callable.TypeInfo, transfer callable.Transfer, src unsafe.Pointer, f *callable.Frame) (callable.Value, error) {
	if t.Array != callable.ArrayC || t.Elem == nil {
		return nil, fmt.Errorf("%w: non-C array", ErrUnsupported)
	}
	base := *(*unsafe.Pointer)(src)
	if base == nil {
		return nil, nil
	}
	et := callable.MapType(t.Elem, callable.In)
	size := et.Size()

	n := -1
	switch {
	case t.Length >= 0:
		lp, lv := f.Param(t.Length), f.Value(t.Length)
		if lp == nil || lv == nil {
			return nil, fmt.Errorf("host: array length argument %d unavailable", t.Length)
		}
		l := callable.LoadInt(lp.Native(), lv)
		if l < 0 || l > MaxArrayLen {
			return nil, fmt.Errorf("%w: %d", ErrArrayLength, l)
		}
		n = int(l)
	case t.Fixed >= 0:
		n = t.Fixed
	case t.Zero:
		n = 0
		for !zero(unsafe.Add(base, uintptr(n)*size), size) {
			n++
			if n > MaxArrayLen {
				return nil, fmt.Errorf("%w: no terminator within %d elements", ErrArrayLength, MaxArrayLen)
			}
		}
	default:
		return nil, fmt.Errorf("host: array of unknown length")
	}

	out := make([]callable.Value, n)
	for i := range out {
		v, err := m.ToDynamic(t.Elem, transfer, unsafe.Add(base, uintptr(i)*size), nil)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func zero(p unsafe.Pointer, size uintptr) bool {
	for _, b := range unsafe.Slice((*byte)(p), size) {
		if b != 0 {
			return false
		}
	}
	return true
}
