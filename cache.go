// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import (
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/launix-de/NonLockingReadMap"
	"golang.org/x/sync/singleflight"
)

// planEntry is the cache record of a built plan.
type planEntry struct {
	key  string
	plan *Plan
}

func (e planEntry) GetKey() string { return e.key }

func (e planEntry) ComputeSize() uint {
	return uint(len(e.key)) + 16 + 64*uint(len(e.plan.params))
}

// planCache memoizes plans by description kind and qualified name.
// Reads never lock; inserts are serialized and happen once per key.
type planCache struct {
	entries NonLockingReadMap.NonLockingReadMap[planEntry, string]
	group   singleflight.Group
	mu      sync.Mutex

	hits   atomix.Uint32
	misses atomix.Uint32
	builds atomix.Uint32
}

func newPlanCache() *planCache {
	return &planCache{entries: NonLockingReadMap.New[planEntry, string]()}
}

func (c *planCache) lookup(key string) *Plan {
	if e := c.entries.Get(key); e != nil {
		return e.plan
	}
	return nil
}

// get returns the cached plan for key or builds it. Concurrent builds of
// one key are coalesced; failures are returned and not stored.
func (c *planCache) get(key string, build func() (*Plan, error)) (*Plan, error) {
	if p := c.lookup(key); p != nil {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if p := c.lookup(key); p != nil {
			return p, nil
		}
		p, err := build()
		if err != nil {
			return nil, err
		}
		c.builds.Add(1)
		c.mu.Lock()
		defer c.mu.Unlock()
		if prev := c.entries.Get(key); prev != nil {
			return prev.plan, nil
		}
		c.entries.Set(&planEntry{key: key, plan: p})
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Plan), nil
}

func (c *planCache) len() int {
	return len(c.entries.GetAll())
}

// CacheStats are plan cache counters.
type CacheStats struct {
	Plans  int
	Hits   uint32
	Misses uint32
	Builds uint32
}

func (c *planCache) stats() CacheStats {
	return CacheStats{
		Plans:  c.len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Builds: c.builds.Load(),
	}
}
