package dataset

import (
	"sync"
	"time"

	"github.com/dsviz/dsviz/internal/observability"
)

// detectCache is a read-through cache of successful format detections keyed
// by (root, dataset). Entries expire after a short TTL so on-disk changes are
// never masked for longer than that; failures are never cached. The system
// stays correct with the cache disabled, only slower.
type detectCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

type cacheKey struct {
	root string
	name string
}

type cacheEntry struct {
	detection Detection
	expires   time.Time
}

func newDetectCache(ttl time.Duration) *detectCache {
	if ttl <= 0 {
		return &detectCache{}
	}
	return &detectCache{ttl: ttl, entries: make(map[cacheKey]cacheEntry)}
}

func (c *detectCache) get(root, name string) (Detection, bool) {
	if c.entries == nil {
		return Detection{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[cacheKey{root: root, name: name}]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		observability.ObserveDetectCache(false)
		return Detection{}, false
	}
	observability.ObserveDetectCache(true)
	return entry.detection, true
}

func (c *detectCache) put(root, name string, detection Detection) {
	if c.entries == nil {
		return
	}
	c.mu.Lock()
	c.entries[cacheKey{root: root, name: name}] = cacheEntry{
		detection: detection,
		expires:   time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
