// ABOUTME: In-memory cache with TTL-based expiration
// ABOUTME: Thread-safe cache using sync.Map with periodic cleanup and injectable clock

package cache

import (
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const cleanupInterval = 1 * time.Minute

type entry struct {
	data      interface{}
	expiresAt time.Time
}

type Cache struct {
	store     sync.Map
	ttl       time.Duration
	clock     clock.WithTicker
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Cache
type Option func(*Cache)

// WithClock injects the time source used for expiry and cleanup
func WithClock(c clock.WithTicker) Option {
	return func(cache *Cache) {
		cache.clock = c
	}
}

func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:   ttl,
		clock: clock.RealClock{},
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.startCleanup()
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		slog.Debug("Cache miss", "key", key)
		return nil, false
	}

	e := val.(entry)
	if c.expired(e) {
		c.store.Delete(key)
		slog.Debug("Cache expired", "key", key)
		return nil, false
	}

	slog.Debug("Cache hit", "key", key)
	return e.data, true
}

// Take removes and returns a live entry. Concurrent callers never both win.
func (c *Cache) Take(key string) (interface{}, bool) {
	val, ok := c.store.LoadAndDelete(key)
	if !ok {
		return nil, false
	}
	e := val.(entry)
	if c.expired(e) {
		return nil, false
	}
	return e.data, true
}

func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	e := entry{
		data:      value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.store.Store(key, e)
	slog.Debug("Cache set", "key", key, "ttl", ttl)
}

// TTLRemaining returns how long a live entry has left
func (c *Cache) TTLRemaining(key string) (time.Duration, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		return 0, false
	}
	e := val.(entry)
	if c.expired(e) {
		return 0, false
	}
	return e.expiresAt.Sub(c.clock.Now()), true
}

func (c *Cache) Clear(key string) {
	c.store.Delete(key)
}

// Len counts live entries
func (c *Cache) Len() int {
	n := 0
	c.store.Range(func(_, val interface{}) bool {
		if !c.expired(val.(entry)) {
			n++
		}
		return true
	})
	return n
}

// Range calls fn for each live entry until fn returns false
func (c *Cache) Range(fn func(key string, value interface{}) bool) {
	c.store.Range(func(k, val interface{}) bool {
		e := val.(entry)
		if c.expired(e) {
			return true
		}
		return fn(k.(string), e.data)
	})
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) expired(e entry) bool {
	return c.clock.Now().After(e.expiresAt)
}

func (c *Cache) startCleanup() {
	ticker := c.clock.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C():
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.store.Range(func(key, val interface{}) bool {
		if c.expired(val.(entry)) {
			c.store.Delete(key)
		}
		return true
	})
}
