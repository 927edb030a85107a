// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"code.hybscloud.com/kont"
)

// Yield is the effect operation for suspending a coroutine.
// Perform(Yield{Values: vs}) hands vs to the resumer and resumes with the
// arguments of the next resume.
type Yield struct {
	kont.Phantom[[]Value]
	Values []Value
}

// Current is the effect operation for reading the running coroutine's
// execution context. Perform(Current{}) never suspends.
type Current struct {
	kont.Phantom[*Context]
}

// DispatchCoroutine handles Current on the running coroutine.
func (Current) DispatchCoroutine(co *Coroutine) (kont.Resumed, error) {
	return co.ctx, nil
}

// Status is the run state of a coroutine.
type Status uint8

const (
	// StatusSuspended is a coroutine that was never resumed or is parked
	// at a yield.
	StatusSuspended Status = iota
	// StatusRunning is a coroutine currently being resumed.
	StatusRunning
	// StatusDead is a coroutine that returned or failed.
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusDead:
		return "dead"
	}
	return "unknown"
}
