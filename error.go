// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

var (
	// ErrSymbolNotFound reports that a function's native symbol could not be resolved.
	ErrSymbolNotFound = errors.New("callable: symbol not found")
	// ErrBadLayout reports a native ABI layout rejected by the calling mechanism.
	ErrBadLayout = errors.New("callable: bad native layout")
	// ErrSignatureMismatch reports an entry address whose shape differs from the plan.
	ErrSignatureMismatch = errors.New("callable: signature mismatch")
	// ErrTooManyArgs reports a description with more than MaxArgs parameters.
	ErrTooManyArgs = errors.New("callable: too many arguments")
	// ErrNoAddress reports a forward invocation of a plan without an entry address.
	ErrNoAddress = errors.New("callable: no entry address")
	// ErrNotCallable reports a callback target that can be neither called nor resumed.
	ErrNotCallable = errors.New("callable: target is not callable")
	// ErrTrampolineDestroyed reports use of a trampoline after destruction.
	ErrTrampolineDestroyed = errors.New("callable: trampoline destroyed")
	// ErrCoroutineDead reports a resume of a finished coroutine.
	ErrCoroutineDead = errors.New("callable: cannot resume dead coroutine")
	// ErrCoroutineRunning reports a resume of a coroutine that is already running.
	ErrCoroutineRunning = errors.New("callable: cannot resume running coroutine")
	// ErrNoMarshaller reports a bridge used for marshalling without a Marshaller.
	ErrNoMarshaller = errors.New("callable: no marshaller configured")
)

// BuildError is returned when a call plan cannot be built.
// Failed builds are never cached.
type BuildError struct {
	Name string
	Op   string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("callable: %s `%s': %v", e.Op, e.Name, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// CallbackError is a failure raised by a callback target.
// Trampolines whose plan does not report errors panic with it.
type CallbackError struct {
	Name string
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callable: callback `%s': %v", e.Name, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Quark is an interned error-domain identifier.
type Quark uint32

var quarks struct {
	sync.Mutex
	ids   map[string]Quark
	names []string
}

// QuarkFromString interns s and returns its quark. The zero quark is never
// returned for a non-empty string.
func QuarkFromString(s string) Quark {
	if s == "" {
		return 0
	}
	quarks.Lock()
	defer quarks.Unlock()
	if q, ok := quarks.ids[s]; ok {
		return q
	}
	if quarks.ids == nil {
		quarks.ids = make(map[string]Quark)
		quarks.names = []string{""}
	}
	q := Quark(len(quarks.names))
	quarks.ids[s] = q
	quarks.names = append(quarks.names, s)
	return q
}

func (q Quark) String() string {
	quarks.Lock()
	defer quarks.Unlock()
	if int(q) < len(quarks.names) {
		return quarks.names[q]
	}
	return fmt.Sprintf("quark(%d)", uint32(q))
}

// CallbackDomain is the error domain of errors synthesized from failed callbacks.
var CallbackDomain = QuarkFromString("callable-callback-error-quark")

// NativeError is the error record written by native code through a trailing
// error slot. Its layout matches a C struct of {uint32 domain; int32 code;
// char *message}.
type NativeError struct {
	Domain  Quark
	Code    int32
	Message *byte
}

// NewNativeError allocates a native error with a NUL-terminated message.
func NewNativeError(domain Quark, code int32, message string) *NativeError {
	b := make([]byte, len(message)+1)
	copy(b, message)
	return &NativeError{Domain: domain, Code: code, Message: &b[0]}
}

// Text returns the message as a Go string.
func (e *NativeError) Text() string {
	return CString(unsafe.Pointer(e.Message))
}

func (e *NativeError) Error() string {
	return e.Text()
}

// CString copies the NUL-terminated string at p.
func CString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}
