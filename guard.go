// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"sync"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"github.com/jtolds/gls"
)

// pendingCapacity is the bounded capacity of the safe-point ring.
const pendingCapacity = 64

// Guard is a re-entrant lock serializing transitions between native and
// dynamic execution. It is held while dynamic code runs and released
// around native calls. Re-entrancy is tracked per goroutine.
//
// Each transition of the lock from free to held is a safe point: pending
// trampoline destructions are carried out there.
type Guard struct {
	mu      sync.Mutex
	mgr     *gls.ContextManager
	pending lfq.SPSC[*Trampoline]
	// overflow holds busy trampolines that did not fit the ring.
	overflow []*Trampoline
}

// hold is the per-goroutine recursion state of a Guard.
type hold struct {
	depth int
}

type holdKey struct{ g *Guard }

// NewGuard creates an independent guard.
func NewGuard() *Guard {
	g := &Guard{mgr: gls.NewContextManager()}
	g.pending.Init(pendingCapacity)
	return g
}

var defaultGuard = sync.OnceValue(NewGuard)

// DefaultGuard returns the process-wide guard.
func DefaultGuard() *Guard { return defaultGuard() }

func (g *Guard) current() *hold {
	v, ok := g.mgr.GetValue(holdKey{g})
	if !ok {
		return nil
	}
	return v.(*hold)
}

// Held reports whether the calling goroutine holds g.
func (g *Guard) Held() bool {
	h := g.current()
	return h != nil && h.depth > 0
}

// Depth returns the calling goroutine's recursion depth on g.
func (g *Guard) Depth() int {
	if h := g.current(); h != nil {
		return h.depth
	}
	return 0
}

// Enter acquires one level of g, runs fn and releases that level, also
// when fn panics.
func (g *Guard) Enter(fn func()) {
	h := g.current()
	if h == nil {
		h = &hold{}
		g.mgr.SetValues(gls.Values{holdKey{g}: h}, func() { g.enter(h, fn) })
		return
	}
	g.enter(h, fn)
}

func (g *Guard) enter(h *hold, fn func()) {
	if h.depth == 0 {
		g.mu.Lock()
		h.depth = 1
		defer func() {
			h.depth = 0
			g.mu.Unlock()
		}()
		g.drain()
	} else {
		h.depth++
		defer func() { h.depth-- }()
	}
	fn()
}

// Leave releases one level of g around fn and re-acquires it afterwards,
// also when fn panics. The lock is free during fn only if the calling
// goroutine held exactly one level.
func (g *Guard) Leave(fn func()) {
	h := g.current()
	if h == nil || h.depth == 0 {
		panic("callable: Leave without holding the guard")
	}
	if h.depth > 1 {
		h.depth--
		defer func() { h.depth++ }()
		fn()
		return
	}
	h.depth = 0
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		h.depth = 1
		g.drain()
	}()
	fn()
}

// schedule queues t for destruction at the next safe point. Entries that
// do not fit the ring after a drain wait in the overflow list.
// Must be called with g held.
func (g *Guard) schedule(t *Trampoline) {
	err := g.pending.Enqueue(&t)
	if err == nil {
		return
	}
	if !iox.IsWouldBlock(err) {
		panic(err)
	}
	g.drain()
	g.requeue(t)
}

// requeue puts t back in the ring, or in the overflow list when the ring
// is full. Must be called with g held.
func (g *Guard) requeue(t *Trampoline) {
	err := g.pending.Enqueue(&t)
	if err == nil {
		return
	}
	if !iox.IsWouldBlock(err) {
		panic(err)
	}
	g.overflow = append(g.overflow, t)
}

// drain destroys queued trampolines. Trampolines still executing further
// up the stack are queued again. Must be called with g held.
func (g *Guard) drain() {
	busy := g.overflow
	g.overflow = nil
	for i, t := range busy {
		if t.active == 0 {
			t.release()
			busy[i] = nil
		}
	}
	for {
		t, err := g.pending.Dequeue()
		if err != nil {
			break
		}
		if t.active > 0 {
			busy = append(busy, t)
			continue
		}
		t.release()
	}
	for _, t := range busy {
		if t != nil {
			g.requeue(t)
		}
	}
}

// Collect runs a safe point on the calling goroutine.
func (g *Guard) Collect() {
	g.Enter(g.drain)
}
