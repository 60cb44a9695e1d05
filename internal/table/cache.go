package table

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache loads each table path at most once and shares the result.
// Concurrent first loads of the same path are collapsed into one read.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*Table
	group  singleflight.Group
	load   func(string) (*Table, error)
}

// NewCache returns a cache backed by Load.
func NewCache() *Cache {
	return NewCacheWith(Load)
}

// NewCacheWith returns a cache backed by a custom loader.
func NewCacheWith(load func(string) (*Table, error)) *Cache {
	return &Cache{tables: make(map[string]*Table), load: load}
}

// Get returns the table for path, loading it on first use. Failed loads
// are not cached.
func (c *Cache) Get(path string) (*Table, error) {
	c.mu.RLock()
	t, ok := c.tables[path]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		c.mu.RLock()
		t, ok := c.tables[path]
		c.mu.RUnlock()
		if ok {
			return t, nil
		}
		t, err := c.load(path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[path] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}
