// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"code.hybscloud.com/callable"
)

type symbols map[string]callable.Address

func (s symbols) ResolveSymbol(namespace, symbol string) (callable.Address, error) {
	if a, ok := s[namespace+"."+symbol]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", callable.ErrSymbolNotFound, symbol)
}

func TestPlanLayout(t *testing.T) {
	b := newBridge(t)
	widget := iface(callable.IfaceObject, "Widget", 0).Interface
	info := function("resize", typ(callable.TagBoolean),
		arg("w", typ(callable.TagInt32), callable.In),
		arg("old", typ(callable.TagInt32), callable.Out))
	info.Container, info.Flags = widget, callable.FlagMethod|callable.FlagThrows
	p := build(t, b, info, func(self unsafe.Pointer, w int32, old, errp unsafe.Pointer) uint32 { return 1 })

	abi, rabi := p.ABI()
	want := []callable.Type{callable.TypePointer, callable.TypeSint32, callable.TypePointer, callable.TypePointer}
	if !reflect.DeepEqual(abi, want) {
		t.Fatalf("abi: got %v, want %v", abi, want)
	}
	if rabi != callable.TypeUint32 {
		t.Fatalf("return abi: got %v, want %v", rabi, callable.TypeUint32)
	}
	if got := p.Key(); got != "1:Test.Widget.resize" {
		t.Fatalf("key: got %q", got)
	}
	if !p.HasReceiver() || !p.Throws() {
		t.Fatalf("receiver %v, throws %v", p.HasReceiver(), p.Throws())
	}
	if got := p.NArgs(); got != 2 {
		t.Fatalf("nargs: got %d, want 2", got)
	}
	if r := p.Return(); r.Name() != "return" || r.Direction != callable.Out {
		t.Fatalf("return param: got %s %v", r.Name(), r.Direction)
	}
	s := p.String()
	if !strings.HasPrefix(s, "callable.fun (0x") || !strings.HasSuffix(s, "): Test.Widget.resize") {
		t.Fatalf("string: got %q", s)
	}
	if p.Info() != info {
		t.Fatal("plan does not reference its description")
	}
}

func TestPlanReceiverRules(t *testing.T) {
	b := newBridge(t)
	widget := iface(callable.IfaceObject, "Widget", 0).Interface
	cases := []struct {
		name  string
		kind  callable.Kind
		flags callable.Flags
		self  bool
		fn    callable.Address
	}{
		{"method", callable.KindFunction, callable.FlagMethod, true, func(unsafe.Pointer) {}},
		{"ctor", callable.KindFunction, callable.FlagMethod | callable.FlagConstructor, false, func() {}},
		{"static", callable.KindFunction, 0, false, func() {}},
		{"signal", callable.KindSignal, 0, true, func(unsafe.Pointer) {}},
		{"vfunc", callable.KindVFunc, callable.FlagMethod, false, func() {}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := function(tc.name, nil)
			info.Kind, info.Flags, info.Container = tc.kind, tc.flags, widget
			p := build(t, b, info, tc.fn)
			if got := p.HasReceiver(); got != tc.self {
				t.Fatalf("got %v, want %v", got, tc.self)
			}
		})
	}
}

func TestPlanCompanionMarking(t *testing.T) {
	b := newBridge(t)
	info := function("connect", nil,
		callable.ArgInfo{Name: "cb", Type: iface(callable.IfaceCallback, "Notify", 0), Closure: 1, Destroy: 2},
		arg("data", &callable.TypeInfo{Tag: callable.TagVoid, Pointer: true, Length: -1, Fixed: -1}, callable.In),
		arg("notify", iface(callable.IfaceCallback, "Destroy", 0), callable.In),
		// closure index 0 never marks: only positive indices do
		callable.ArgInfo{Name: "self_data", Type: typ(callable.TagInt32), Closure: 0, Destroy: -1},
	)
	p := build(t, b, info, func(cb, data, notify unsafe.Pointer, x int32) {})

	got := make([]bool, p.NArgs())
	for i, par := range p.Params() {
		got[i] = par.Internal
	}
	if want := []bool{false, true, true, false}; !reflect.DeepEqual(got, want) {
		t.Fatalf("internal: got %v, want %v", got, want)
	}
	if n := p.Visible(); n != 2 {
		t.Fatalf("visible: got %d, want 2", n)
	}
}

func TestPlanResolvesSymbols(t *testing.T) {
	info := function("neg", typ(callable.TagInt32), arg("x", typ(callable.TagInt32), callable.In))
	neg := func(x int32) int32 { return -x }
	explicit := func(x int32) int32 { return x }

	b := newBridge(t, callable.WithResolver(symbols{"Test.test_neg": neg}))
	res, err := b.Invoke(build(t, b, info, nil), 5)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != int64(-5) {
		t.Fatalf("got %v, want -5", res[0])
	}

	// An explicit address takes precedence over the symbol.
	b2 := newBridge(t, callable.WithResolver(symbols{"Test.test_neg": neg}))
	res, err = b2.Invoke(build(t, b2, info, explicit), 5)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != int64(5) {
		t.Fatalf("got %v, want 5", res[0])
	}
}

func TestPlanBuildErrors(t *testing.T) {
	b := newBridge(t)

	_, err := b.Build(function("missing", nil), nil)
	var be *callable.BuildError
	if !errors.As(err, &be) || be.Op != "resolve" || !errors.Is(err, callable.ErrSymbolNotFound) {
		t.Fatalf("unresolved: got %v", err)
	}

	b2 := newBridge(t, callable.WithResolver(symbols{}))
	_, err = b2.Build(function("missing", nil), nil)
	if !errors.As(err, &be) || be.Name != "Test.missing(test_missing)" {
		t.Fatalf("unresolved name: got %v", err)
	}

	args := make([]callable.ArgInfo, callable.MaxArgs+1)
	for i := range args {
		args[i] = arg(fmt.Sprintf("a%d", i), typ(callable.TagInt32), callable.In)
	}
	if _, err = b.Build(function("wide", nil, args...), func() {}); !errors.Is(err, callable.ErrTooManyArgs) {
		t.Fatalf("too many args: got %v", err)
	}

	_, err = b.Build(function("mismatch", typ(callable.TagInt32)), func() string { return "" })
	if !errors.As(err, &be) || be.Op != "compile" || !errors.Is(err, callable.ErrSignatureMismatch) {
		t.Fatalf("mismatch: got %v", err)
	}

	// Signature-identical funcs of named types convert.
	type unary func(int32) int32
	_, err = b.Build(function("named", typ(callable.TagInt32), arg("x", typ(callable.TagInt32), callable.In)), unary(func(x int32) int32 { return x }))
	if err != nil {
		t.Fatal(err)
	}
}

func TestPlanCacheIdentity(t *testing.T) {
	b := newBridge(t)
	info := function("twice", typ(callable.TagInt32), arg("x", typ(callable.TagInt32), callable.In))

	p1 := build(t, b, info, func(x int32) int32 { return 2 * x })
	p2 := build(t, b, info, func(x int32) int32 { return 3 * x })
	if p1 != p2 {
		t.Fatal("cache key must ignore the address")
	}

	res, err := b.Invoke(p2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != int64(8) {
		t.Fatalf("got %v, want 8", res[0])
	}

	if st := b.Stats(); st.Plans != 1 || st.Builds != 1 || st.Hits != 1 {
		t.Fatalf("stats %+v", st)
	}

	// Same name, other kind: distinct entry.
	cb := callback("twice", typ(callable.TagInt32), arg("x", typ(callable.TagInt32), callable.In))
	if p3 := build(t, b, cb, nil); p3 == p1 {
		t.Fatal("kinds share a cache entry")
	}
	if n := b.Stats().Plans; n != 2 {
		t.Fatalf("plans: got %d, want 2", n)
	}
}

func TestPlanCacheDoesNotStoreFailures(t *testing.T) {
	b := newBridge(t)
	info := function("late", nil)
	if _, err := b.Build(info, nil); err == nil {
		t.Fatal("expected build error")
	}
	if n := b.Stats().Plans; n != 0 {
		t.Fatalf("plans: got %d, want 0", n)
	}
	if p, err := b.Build(info, func() {}); err != nil || p == nil {
		t.Fatalf("got %v, %v", p, err)
	}
}

func TestPlanCacheConcurrentBuilds(t *testing.T) {
	b := newBridge(t)
	info := function("shared", nil)
	const n = 16
	plans := make([]*callable.Plan, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := b.Build(info, func() {})
			if err != nil {
				t.Error(err)
				return
			}
			plans[i] = p
		}()
	}
	wg.Wait()
	for i, p := range plans[1:] {
		if p != plans[0] {
			t.Fatalf("plan %d differs", i+1)
		}
	}
	if got := b.Stats().Builds; got != 1 {
		t.Fatalf("builds: got %d, want 1", got)
	}
}

func TestInvokeWithoutAddress(t *testing.T) {
	b := newBridge(t)
	p := build(t, b, callback("notify", nil), nil)
	_, err := b.Invoke(p)
	if !errors.Is(err, callable.ErrNoAddress) {
		t.Fatalf("got %v, want ErrNoAddress", err)
	}
}
