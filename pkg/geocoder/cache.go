package geocoder

import (
	"sync"

	"github.com/lintang-b-s/eventradar/pkg/geo"
)

// Cache maps an address string to its resolved coordinate.
type Cache interface {
	Get(address string) (geo.Coordinate, bool)
	Set(address string, coord geo.Coordinate)
	Len() int
}

// MapCache is an append-only, process-wide address cache. Entries are never evicted; concurrent
// writers for one key store the same value, so the last write wins.
type MapCache struct {
	mu    sync.RWMutex
	items map[string]geo.Coordinate
}

func NewMapCache() *MapCache {
	return &MapCache{
		items: make(map[string]geo.Coordinate),
	}
}

func (c *MapCache) Get(address string) (geo.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.items[address]
	return coord, ok
}

func (c *MapCache) Set(address string, coord geo.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[address] = coord
}

func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
