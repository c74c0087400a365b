// Package lru caches the outcome of zone matching per query name.
package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps a canonical query name to the ID of its longest matching zone.
// A stored ID of 0 records that no zone matched.
type Cache interface {
	Get(name string) (zoneID uint64, ok bool)
	Put(name string, zoneID uint64)
	Purge()
	Len() int
	Stats() (hits, misses, evictions uint64)
}

type matchCache struct {
	lru       *lru.Cache[string, uint64]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type disabledCache struct{}

// New creates a cache holding up to size names. A size <= 0 returns a cache
// that never stores anything.
func New(size int) (Cache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}
	c := &matchCache{}
	cache, err := lru.NewWithEvict(size, func(string, uint64) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return c, nil
}

func (c *matchCache) Get(name string) (uint64, bool) {
	if id, ok := c.lru.Get(name); ok {
		c.hits.Add(1)
		return id, true
	}
	c.misses.Add(1)
	return 0, false
}

func (c *matchCache) Put(name string, zoneID uint64) { c.lru.Add(name, zoneID) }

func (c *matchCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Cleared entries count as evictions.
func (c *matchCache) Purge() { c.lru.Purge() }

func (c *matchCache) Stats() (uint64, uint64, uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

func (disabledCache) Get(string) (uint64, bool)       { return 0, false }
func (disabledCache) Put(string, uint64)              {}
func (disabledCache) Purge()                          {}
func (disabledCache) Len() int                        { return 0 }
func (disabledCache) Stats() (uint64, uint64, uint64) { return 0, 0, 0 }

var _ Cache = (*matchCache)(nil)
var _ Cache = disabledCache{}
