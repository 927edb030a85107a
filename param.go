// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

// MaxArgs is the maximum number of declared parameters of a call plan.
const MaxArgs = 63

// Param describes one native argument or the return slot.
// Built once, immutable afterward.
type Param struct {
	Type      *TypeInfo
	Arg       *ArgInfo // nil for the return slot
	Direction Direction
	Transfer  Transfer
	Internal  bool
}

// Name returns the declared parameter name, or "return".
func (p *Param) Name() string {
	if p.Arg == nil {
		return "return"
	}
	return p.Arg.Name
}

// CallerAllocates reports whether the caller pre-allocates an output.
func (p *Param) CallerAllocates() bool {
	return p.Arg != nil && p.Arg.CallerAllocates && p.Direction == Out
}

// Native returns the native type of the parameter's value.
func (p *Param) Native() Type {
	return MapType(p.Type, In)
}

// ABI returns the native type of the parameter's call-frame slot.
func (p *Param) ABI() Type {
	return MapType(p.Type, p.Direction)
}

// buildParams derives one descriptor per declared parameter, then marks
// companions internal in a second pass so forward references resolve.
func buildParams(info *Info) (ret Param, params []Param) {
	ret = Param{Type: info.Return, Direction: Out, Transfer: info.CallerOwns}
	if ret.Type == nil {
		ret.Type = &voidType
	}
	params = make([]Param, len(info.Args))
	for i := range info.Args {
		ai := &info.Args[i]
		params[i] = Param{Type: ai.Type, Arg: ai, Direction: ai.Direction, Transfer: ai.Transfer}
		if params[i].Type == nil {
			params[i].Type = &voidType
		}
	}
	markArrayLength(params, ret.Type)
	for i := range params {
		ai := params[i].Arg
		if ai.Closure > 0 && ai.Closure < len(params) {
			params[ai.Closure].Internal = true
		}
		if ai.Destroy > 0 && ai.Destroy < len(params) {
			params[ai.Destroy].Internal = true
		}
		markArrayLength(params, params[i].Type)
	}
	return ret, params
}

var voidType = TypeInfo{Tag: TagVoid, Length: -1, Fixed: -1}

func markArrayLength(params []Param, t *TypeInfo) {
	if t.Tag != TagArray || t.Array != ArrayC {
		return
	}
	if n := t.Length; n >= 0 && n < len(params) {
		params[n].Internal = true
	}
}
