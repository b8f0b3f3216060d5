package publisher

import (
	"context"
	"sync"
	"time"
)

// Cache memoizes published URLs per user and path for a TTL shorter than
// the link lifetime, so a page that references one file many times signs
// it once.
type Cache struct {
	next Backend
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	entries   map[cacheKey]cacheEntry
	nextSweep time.Time
}

type cacheKey struct {
	user, path string
}

type cacheEntry struct {
	url     string
	expires time.Time
}

// NewCache wraps next.
func NewCache(next Backend, ttl time.Duration) *Cache {
	return &Cache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Name implements Backend.
func (c *Cache) Name() string { return c.next.Name() }

// Publish returns a cached URL or publishes through the wrapped backend.
// Errors are not cached.
func (c *Cache) Publish(ctx context.Context, resource string) (string, error) {
	key := cacheKey{user: UserFromContext(ctx), path: resource}
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.url, nil
	}
	c.mu.Unlock()

	u, err := c.next.Publish(ctx, resource)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{url: u, expires: now.Add(c.ttl)}
	// Expired entries are swept at most once per TTL so a burst of misses
	// stays linear.
	if !now.Before(c.nextSweep) {
		c.evictLocked(now)
	}
	c.mu.Unlock()

	return u, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(c.now())
	return len(c.entries)
}

func (c *Cache) evictLocked(now time.Time) {
	c.nextSweep = now.Add(c.ttl)
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}
