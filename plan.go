// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"fmt"
	"strconv"
)

// Plan is a built call plan: parameter descriptors, the derived native
// layout and the compiled signature. Plans hold no per-call state and are
// shared by all callers.
type Plan struct {
	info    *Info
	key     string
	ret     Param
	params  []Param
	hasSelf bool
	throws  bool
	address Address
	abi     []Type
	rabi    Type
	sig     Signature
}

// Info returns the description the plan was built from.
func (p *Plan) Info() *Info { return p.info }

// Key returns the cache key of the plan.
func (p *Plan) Key() string { return p.key }

// Params returns the declared parameter descriptors.
func (p *Plan) Params() []Param { return p.params }

// Return returns the return descriptor.
func (p *Plan) Return() *Param { return &p.ret }

// NArgs returns the number of declared parameters.
func (p *Plan) NArgs() int { return len(p.params) }

// HasReceiver reports whether native slot 0 is an implicit receiver.
func (p *Plan) HasReceiver() bool { return p.hasSelf }

// Throws reports whether the native signature has a trailing error slot.
func (p *Plan) Throws() bool { return p.throws }

// Address returns the resolved entry address, nil for callback plans.
func (p *Plan) Address() Address { return p.address }

// ABI returns the native slot types and the native return type.
func (p *Plan) ABI() ([]Type, Type) { return p.abi, p.rabi }

// Signature returns the compiled signature.
func (p *Plan) Signature() Signature { return p.sig }

// Visible reports the number of dynamic-side arguments the plan accepts,
// receiver included.
func (p *Plan) Visible() int {
	n := 0
	if p.hasSelf {
		n++
	}
	for i := range p.params {
		if !p.params[i].Internal && p.params[i].Direction != Out {
			n++
		}
	}
	return n
}

func (p *Plan) String() string {
	return fmt.Sprintf("callable.%s (%#x): %s", p.info.Kind.abbrev(), AddressOf(p.address), p.info.QualifiedName())
}

// planKey returns the cache key "<kind>:<qualified name>".
func planKey(info *Info) string {
	return strconv.Itoa(int(info.Kind)) + ":" + info.QualifiedName()
}

// newPlan derives a plan from info. addr overrides symbol resolution.
func newPlan(info *Info, addr Address, m Mechanism, r Resolver) (*Plan, error) {
	name := info.QualifiedName()
	if len(info.Args) > MaxArgs {
		return nil, &BuildError{Name: name, Op: "build", Err: fmt.Errorf("%w: %d", ErrTooManyArgs, len(info.Args))}
	}
	p := &Plan{info: info, key: planKey(info), address: addr}
	switch info.Kind {
	case KindFunction:
		if info.Flags&FlagMethod != 0 && info.Flags&FlagConstructor == 0 {
			p.hasSelf = true
		}
		if p.address == nil {
			if r == nil {
				return nil, &BuildError{Name: name, Op: "resolve", Err: ErrSymbolNotFound}
			}
			a, err := r.ResolveSymbol(info.Namespace, info.Symbol)
			if err != nil {
				return nil, &BuildError{Name: name + "(" + info.Symbol + ")", Op: "resolve", Err: err}
			}
			p.address = a
		}
	case KindSignal:
		p.hasSelf = true
	}
	p.throws = info.Flags&FlagThrows != 0
	p.ret, p.params = buildParams(info)

	n := len(p.params)
	if p.hasSelf {
		n++
	}
	if p.throws {
		n++
	}
	p.abi = make([]Type, 0, n)
	if p.hasSelf {
		p.abi = append(p.abi, TypePointer)
	}
	for i := range p.params {
		p.abi = append(p.abi, p.params[i].ABI())
	}
	if p.throws {
		p.abi = append(p.abi, TypePointer)
	}
	p.rabi = p.ret.Native()

	sig, err := m.Compile(p.rabi, p.abi)
	if err != nil {
		return nil, &BuildError{Name: name, Op: "compile", Err: err}
	}
	if p.address != nil {
		if err := sig.Check(p.address); err != nil {
			return nil, &BuildError{Name: name, Op: "compile", Err: err}
		}
	}
	p.sig = sig
	return p, nil
}
