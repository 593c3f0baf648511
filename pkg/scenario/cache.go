package scenario

import (
	"sync"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// ResultCache stores calculated outputs by scenario id. A Manager clears
// entries when the scenarios they were computed from change.
type ResultCache interface {
	Get(id string) (fieldpath.Outputs, bool)
	Put(id string, out fieldpath.Outputs)
	Delete(ids ...string)
	Clear()
}

// DefaultCacheSize is used by NewLRUCache when maxSize <= 0.
const DefaultCacheSize = 64

// LRUCache is a thread-safe in-memory ResultCache with least recently used
// eviction.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]fieldpath.Outputs
	order   []string // oldest first
}

// NewLRUCache creates a cache with the given maximum number of entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &LRUCache{
		maxSize: maxSize,
		entries: make(map[string]fieldpath.Outputs),
	}
}

// Get returns the cached outputs for id.
func (c *LRUCache) Get(id string) (fieldpath.Outputs, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	c.moveToEnd(id)
	return out, true
}

// Put stores outputs for id, evicting the oldest entry if full.
func (c *LRUCache) Put(id string, out fieldpath.Outputs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		c.entries[id] = out
		c.moveToEnd(id)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[id] = out
	c.order = append(c.order, id)
}

// Delete drops the given ids.
func (c *LRUCache) Delete(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if _, ok := c.entries[id]; !ok {
			continue
		}
		delete(c.entries, id)
		c.removeFromOrder(id)
	}
}

// Clear drops every entry.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]fieldpath.Outputs)
	c.order = nil
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache) moveToEnd(id string) {
	c.removeFromOrder(id)
	c.order = append(c.order, id)
}

func (c *LRUCache) removeFromOrder(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
