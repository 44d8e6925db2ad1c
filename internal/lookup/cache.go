package lookup

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Cache remembers lookup answers for a fixed time. A full cache first drops
// expired answers and then the answer closest to expiry.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	ttl     time.Duration
	maxSize int
	clock   clock.PassiveClock
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// CacheOption configures a Cache.
type CacheOption[K comparable, V any] func(*Cache[K, V])

// WithMaxSize bounds the number of answers kept. Zero means unbounded.
func WithMaxSize[K comparable, V any](size int) CacheOption[K, V] {
	return func(c *Cache[K, V]) {
		c.maxSize = size
	}
}

// WithCacheClock sets the clock used for expiry.
func WithCacheClock[K comparable, V any](clk clock.PassiveClock) CacheOption[K, V] {
	return func(c *Cache[K, V]) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// NewCache creates a cache whose answers live for ttl.
func NewCache[K comparable, V any](ttl time.Duration, opts ...CacheOption[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live answer.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.clock.Now().After(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores an answer. Replacing an existing key never evicts another.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, ok := c.entries[key]; !ok && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.makeRoom(now)
	}
	c.entries[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

// Delete forgets an answer.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size returns the number of stored answers, expired ones included.
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// makeRoom frees at least one slot. c.mu must be held.
func (c *Cache[K, V]) makeRoom(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}

	var (
		victim  K
		soonest time.Time
		found   bool
	)
	for k, e := range c.entries {
		if !found || e.expires.Before(soonest) {
			victim, soonest, found = k, e.expires, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}
