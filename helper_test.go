// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable_test

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"

	"code.hybscloud.com/callable"
	"code.hybscloud.com/callable/host"
)

func typ(tag callable.TypeTag) *callable.TypeInfo {
	return &callable.TypeInfo{Tag: tag, Length: -1, Fixed: -1}
}

func array(elem callable.TypeTag, length int) *callable.TypeInfo {
	return &callable.TypeInfo{Tag: callable.TagArray, Pointer: true, Array: callable.ArrayC, Length: length, Fixed: -1, Elem: typ(elem)}
}

func iface(kind callable.InterfaceKind, name string, size uintptr) *callable.TypeInfo {
	return &callable.TypeInfo{
		Tag:       callable.TagInterface,
		Pointer:   kind != callable.IfaceEnum && kind != callable.IfaceFlags,
		Length:    -1,
		Fixed:     -1,
		Interface: &callable.InterfaceInfo{Kind: kind, Namespace: "Test", Name: name, Size: size, Storage: callable.TagInt32},
	}
}

func arg(name string, t *callable.TypeInfo, dir callable.Direction) callable.ArgInfo {
	return callable.ArgInfo{Name: name, Type: t, Direction: dir, Closure: -1, Destroy: -1}
}

func function(name string, ret *callable.TypeInfo, args ...callable.ArgInfo) *callable.Info {
	return &callable.Info{
		Kind:      callable.KindFunction,
		Namespace: "Test",
		Name:      name,
		Symbol:    "test_" + name,
		Return:    ret,
		Args:      args,
	}
}

func callback(name string, ret *callable.TypeInfo, args ...callable.ArgInfo) *callable.Info {
	in := function(name, ret, args...)
	in.Kind, in.Symbol = callable.KindCallback, ""
	return in
}

// newBridge creates a bridge with its own guard, the reference marshaller
// and a discarded log.
func newBridge(tb testing.TB, opts ...callable.Option) *callable.Bridge {
	tb.Helper()
	base := []callable.Option{
		callable.WithGuard(callable.NewGuard()),
		callable.WithMarshaller(host.NewMarshaller(nil)),
		callable.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	b := callable.New(append(base, opts...)...)
	tb.Cleanup(b.Close)
	return b
}

// build compiles info bound to fn or fails the test.
func build(tb testing.TB, b *callable.Bridge, info *callable.Info, fn callable.Address) *callable.Plan {
	tb.Helper()
	p, err := b.Build(info, fn)
	if err != nil {
		tb.Fatalf("build %s: %v", info.QualifiedName(), err)
	}
	return p
}

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

// mustPanic runs fn and returns the recovered value.
func mustPanic(tb testing.TB, fn func()) (r any) {
	tb.Helper()
	defer func() { r = recover() }()
	fn()
	tb.Fatal("expected panic")
	return nil
}
