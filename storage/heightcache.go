package storage

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wcgcyx/xayagame/hash"
)

// HeightCache maps BlockHash to height for blocks that currently have
// undo data recorded. The controller keeps it up to date as undo data
// is added and released. Pruning does not consult it (PruneUndoData
// works from the height stored with each undo record), so the cache
// does not need to be durable or rebuilt eagerly on startup.
type HeightCache struct {
	cache *lru.Cache[hash.BlockHash, uint64]
}

// NewHeightCache creates a HeightCache retaining at most capacity
// entries.
func NewHeightCache(capacity int) (*HeightCache, error) {
	c, err := lru.New[hash.BlockHash, uint64](capacity)
	if err != nil {
		return nil, err
	}
	return &HeightCache{cache: c}, nil
}

// Record notes that h was recorded with the given height.
func (c *HeightCache) Record(h hash.BlockHash, height uint64) {
	c.cache.Add(h, height)
}

// Forget removes h from the cache, called when its undo data is
// released.
func (c *HeightCache) Forget(h hash.BlockHash) {
	c.cache.Remove(h)
}

// Height returns the cached height for h, if known.
func (c *HeightCache) Height(h hash.BlockHash) (uint64, bool) {
	return c.cache.Get(h)
}

// Len returns the number of entries currently cached.
func (c *HeightCache) Len() int {
	return c.cache.Len()
}
