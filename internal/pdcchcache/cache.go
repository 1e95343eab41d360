// Package pdcchcache is the cell-wide PDCCH candidate-location cache
// (component P, §4.2 EXPANSION): recomputing a UE's candidate CCE start
// positions every TTI is the dominant per-TTI cost in the reference
// implementation, so results are memoised per (RNTI, carrier, CFI,
// subframe) and evicted least-recently-used first once the cache fills.
package pdcchcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/go-enb/sched/internal/pdcch"
)

// Key identifies one memoised candidate table.
type Key struct {
	RNTI    uint16
	CCIndex int
	CFIIdx  int
	SfIdx   uint32
}

// Cache is a fixed-capacity, concurrency-unsafe LRU of candidate tables
// shared by every UE on a cell. Callers already hold the scheduler mutex
// (§5), so no internal locking is needed.
type Cache struct {
	lru *lru.Cache[Key, *pdcch.CandidateTable]
}

// New returns a cache sized for maxUEs UEs, 4 entries each (one per
// aggregation-level-independent CFI slot actually stored), matching the
// "4 * max_ues_per_cell" bound (§4.2 EXPANSION).
func New(maxUEs int) *Cache {
	size := 4 * maxUEs
	if size < 1 {
		size = 1
	}
	l, _ := lru.New[Key, *pdcch.CandidateTable](size)
	return &Cache{lru: l}
}

// Get returns the cached table for key, computing and storing it via
// compute on a miss.
func (c *Cache) Get(key Key, compute func() pdcch.CandidateTable) *pdcch.CandidateTable {
	if t, ok := c.lru.Get(key); ok {
		return t
	}
	t := compute()
	c.lru.Add(key, &t)
	return &t
}

// InvalidateUE evicts every cached table for rnti, used after a
// reconfiguration that changes the cell's CCE layout.
func (c *Cache) InvalidateUE(rnti uint16) {
	for _, k := range c.lru.Keys() {
		if k.RNTI == rnti {
			c.lru.Remove(k)
		}
	}
}

// Len reports the current entry count, exported for the metrics/audit
// component's cache-occupancy gauge.
func (c *Cache) Len() int { return c.lru.Len() }
