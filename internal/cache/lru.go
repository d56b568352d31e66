package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUWithTTL is a size-bounded LRU whose entries also expire after a fixed TTL.
type LRUWithTTL[K comparable, V any] struct {
	cache   *lru.Cache[K, *ttlEntry[V]]
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	hits    uint64
	misses  uint64
	evicted uint64
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLRUWithTTL creates a cache holding at most size entries. A zero ttl disables expiry.
func NewLRUWithTTL[K comparable, V any](size int, ttl time.Duration) (*LRUWithTTL[K, V], error) {
	cache, err := lru.New[K, *ttlEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &LRUWithTTL[K, V]{cache: cache, ttl: ttl, now: time.Now}, nil
}

// Get returns the value when present and not expired. Expired entries are dropped.
func (c *LRUWithTTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.cache.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		c.misses++
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// Set stores value, evicting the least recently used entry when full.
func (c *LRUWithTTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	if c.cache.Add(key, &ttlEntry[V]{value: value, expiresAt: expiresAt}) {
		c.evicted++
	}
}

// Delete removes key.
func (c *LRUWithTTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Len returns the number of stored entries, expired or not.
func (c *LRUWithTTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Purge removes every entry.
func (c *LRUWithTTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Stats summarises cache effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Evicted uint64  `json:"evicted"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns the current counters.
func (c *LRUWithTTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
		Size:    c.cache.Len(),
		HitRate: hitRate,
	}
}

// CleanupExpired drops expired entries and returns how many were removed.
func (c *LRUWithTTL[K, V]) CleanupExpired() int {
	if c.ttl == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.cache.Keys() {
		if entry, ok := c.cache.Peek(key); ok && now.After(entry.expiresAt) {
			c.cache.Remove(key)
			removed++
		}
	}
	return removed
}
