// Package cache provides a process-local TTL cache used to debounce
// duplicate webhook deliveries by fingerprint. It is a short-window
// debounce, not a durable ledger; the payment status equality check in the
// orchestrator is the durable safety net.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is used for general-purpose dedup. The webhook path uses the
// much shorter WebhookTTL since gateway retries arrive within seconds.
const (
	DefaultTTL = 24 * time.Hour
	WebhookTTL = 2 * time.Second
)

type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add inserts fingerprint and reports whether it was newly inserted. Exactly
// one concurrent caller observes true for a given fingerprint within a TTL
// window; all others observe false until the entry expires.
func (c *Cache) Add(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	if _, ok := c.entries[fingerprint]; ok {
		return false
	}
	c.entries[fingerprint] = c.now()
	return true
}

// Exists reports whether a live entry for fingerprint is present.
func (c *Cache) Exists(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	_, ok := c.entries[fingerprint]
	return ok
}

// sweep purges expired entries. Caller must hold mu.
func (c *Cache) sweep() {
	cutoff := c.now().Add(-c.ttl)
	for fp, seen := range c.entries {
		if seen.Before(cutoff) {
			delete(c.entries, fp)
		}
	}
}
