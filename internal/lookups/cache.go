package lookups

import (
	"context"
	"sync"
	"time"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// CachedProvider caches lookups per filter for a fixed TTL
type CachedProvider struct {
	next    Provider
	data    map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      *valuation.Lookups
	expiration time.Time
}

// NewCachedProvider wraps next with a TTL cache. Close must be called to
// stop the cleanup goroutine.
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	interval := time.Minute
	if ttl > 0 && ttl < interval {
		interval = ttl
	}

	c := &CachedProvider{
		next:    next,
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go c.cleanupLoop()

	return c
}

// Lookups returns cached lookups for the filter or loads them from the wrapped provider
func (c *CachedProvider) Lookups(ctx context.Context, filter Filter) (*valuation.Lookups, error) {
	key := filter.CacheKey()
	if value, ok := c.get(key); ok {
		return value, nil
	}

	value, err := c.next.Lookups(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.data[key] = &cacheEntry{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	return value, nil
}

func (c *CachedProvider) get(key string) (*valuation.Lookups, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

// Invalidate drops every cached entry
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*cacheEntry)
}

// Size returns the number of entries in the cache
func (c *CachedProvider) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// cleanupLoop periodically removes expired entries
func (c *CachedProvider) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *CachedProvider) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *CachedProvider) Close() {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}
