// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"log/slog"
)

// Bridge builds call plans and uses them to call native functions and to
// expose dynamic values as native function pointers.
type Bridge struct {
	guard    *Guard
	mech     Mechanism
	resolver Resolver
	marsh    Marshaller
	objects  Objects
	log      *slog.Logger
	plans    *planCache
	live     *registry
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for diagnostics such as ownership warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithMechanism sets the calling mechanism. The default is Reflect().
func WithMechanism(m Mechanism) Option {
	return func(b *Bridge) { b.mech = m }
}

// WithResolver sets the native symbol resolver used for functions.
func WithResolver(r Resolver) Option {
	return func(b *Bridge) { b.resolver = r }
}

// WithMarshaller sets the value marshaller.
func WithMarshaller(m Marshaller) Option {
	return func(b *Bridge) { b.marsh = m }
}

// WithObjects sets the object and record identity collaborator.
func WithObjects(o Objects) Option {
	return func(b *Bridge) { b.objects = o }
}

// WithGuard sets the concurrency guard. The default is DefaultGuard().
func WithGuard(g *Guard) Option {
	return func(b *Bridge) { b.guard = g }
}

// New creates a bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{plans: newPlanCache(), live: newRegistry()}
	for _, opt := range opts {
		opt(b)
	}
	if b.guard == nil {
		b.guard = DefaultGuard()
	}
	if b.mech == nil {
		b.mech = Reflect()
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

// Guard returns the bridge's concurrency guard.
func (b *Bridge) Guard() *Guard { return b.guard }

// Build returns the call plan of info, building and caching it on first
// use. addr is the entry address; when nil, functions resolve their
// symbol through the Resolver.
func (b *Bridge) Build(info *Info, addr Address) (*Plan, error) {
	return b.plans.get(planKey(info), func() (*Plan, error) {
		p, err := newPlan(info, addr, b.mech, b.resolver)
		if err != nil {
			b.log.Debug("call plan build failed", "callable", info.QualifiedName(), "error", err)
			return nil, err
		}
		b.log.Debug("call plan built", "plan", p.String(), "slots", len(p.abi))
		return p, nil
	})
}

// Stats are bridge counters.
type Stats struct {
	CacheStats
	Trampolines int
	Created     uint32
	Destroyed   uint32
}

// Stats returns plan cache and trampoline counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		CacheStats:  b.plans.stats(),
		Trampolines: b.live.len(),
		Created:     b.live.created.Load(),
		Destroyed:   b.live.destroyed.Load(),
	}
}

// Collect runs a safe point: trampolines scheduled for destruction are
// destroyed.
func (b *Bridge) Collect() {
	b.guard.Collect()
}

// Close destroys every live trampoline of the bridge. Trampolines that
// are executing, for instance when Close is called from a target, are
// destroyed at the next safe point after their frames unwind.
func (b *Bridge) Close() {
	b.guard.Enter(func() {
		b.guard.drain()
		for _, t := range b.live.all() {
			if t.active > 0 {
				b.guard.schedule(t)
				continue
			}
			t.release()
		}
	})
}

// held runs fn with the guard held by the calling goroutine, acquiring it
// only if it is not held yet.
func (b *Bridge) held(fn func()) {
	if b.guard.Held() {
		fn()
		return
	}
	b.guard.Enter(fn)
}
