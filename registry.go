// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/google/btree"
)

// Serial identifies a trampoline or event closure. Serials increase in
// creation order across all bridges of the process.
type Serial = uint32

var serials atomix.Uint32

func nextSerial() Serial { return serials.Add(1) }

// registry keeps live trampolines ordered by serial, so that the bridge
// can enumerate and tear them down.
type registry struct {
	mu        sync.Mutex
	tree      *btree.BTreeG[*Trampoline]
	created   atomix.Uint32
	destroyed atomix.Uint32
}

func newRegistry() *registry {
	return &registry{tree: btree.NewG(8, func(a, b *Trampoline) bool {
		return a.serial < b.serial
	})}
}

func (r *registry) add(t *Trampoline) {
	r.mu.Lock()
	r.tree.ReplaceOrInsert(t)
	r.mu.Unlock()
	r.created.Add(1)
}

func (r *registry) remove(t *Trampoline) {
	r.mu.Lock()
	_, ok := r.tree.Delete(t)
	r.mu.Unlock()
	if ok {
		r.destroyed.Add(1)
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tree.Len()
}

// all returns the live trampolines in creation order.
func (r *registry) all() []*Trampoline {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := make([]*Trampoline, 0, r.tree.Len())
	r.tree.Ascend(func(t *Trampoline) bool {
		ts = append(ts, t)
		return true
	})
	return ts
}

// Trampolines returns the live trampolines of the bridge in creation order.
func (b *Bridge) Trampolines() []*Trampoline {
	return b.live.all()
}
