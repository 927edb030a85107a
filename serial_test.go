// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable_test

import (
	"testing"

	"code.hybscloud.com/callable"
)

func TestSerialMonotonic(t *testing.T) {
	b := newBridge(t)
	noop := target(t, func(*callable.Context, []callable.Value) ([]callable.Value, error) { return nil, nil })

	t1, err := b.MakeClosure(callback("S1", nil), noop, false)
	if err != nil {
		t.Fatal(err)
	}
	ec, err := b.MakeEventClosure(func(*callable.Context, []callable.Value) ([]callable.Value, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	t2, err := b.MakeClosure(callback("S2", nil), noop, false)
	if err != nil {
		t.Fatal(err)
	}

	if t1.Serial() >= ec.Serial() {
		t.Fatalf("serials not increasing: %d >= %d", t1.Serial(), ec.Serial())
	}
	if ec.Serial() >= t2.Serial() {
		t.Fatalf("serials not increasing: %d >= %d", ec.Serial(), t2.Serial())
	}
}

func TestTrampolinesInCreationOrder(t *testing.T) {
	b := newBridge(t)
	noop := target(t, func(*callable.Context, []callable.Value) ([]callable.Value, error) { return nil, nil })
	var made []*callable.Trampoline
	for _, name := range []string{"A", "B", "C"} {
		tr, err := b.MakeClosure(callback(name, nil), noop, false)
		if err != nil {
			t.Fatal(err)
		}
		made = append(made, tr)
	}
	made[1].Destroy()

	live := b.Trampolines()
	if len(live) != 2 || live[0] != made[0] || live[1] != made[2] {
		t.Fatalf("live %v", live)
	}
	b.Close()
	if n := len(b.Trampolines()); n != 0 {
		t.Fatalf("%d trampolines after close", n)
	}
	if !made[0].Destroyed() || !made[2].Destroyed() {
		t.Fatal("close left trampolines alive")
	}
}
