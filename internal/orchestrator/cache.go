package orchestrator

import (
	"sync"
	"time"
)

// CacheEntry is one cached tool invocation.
type CacheEntry struct {
	TurnID    string
	Result    ToolExecutionResult
	ExpiresAt time.Time
}

// IdempotencyCache maps canonical tool-call fingerprints to cached results.
// It is owned by one orchestrator instance, not shared process-wide, so
// orchestrators under test cannot interfere with each other. All access is
// linearized through a mutex because multiple steps (possibly for different
// agents) may probe or insert the same fingerprint concurrently.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	now     func() time.Time
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{
		entries: make(map[string]CacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached entry for key. Expired entries are removed lazily
// here rather than by a background sweeper.
func (c *IdempotencyCache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return CacheEntry{}, false
	}
	return entry, true
}

// Put inserts a result under key with the given TTL. A non-positive TTL
// stores nothing.
func (c *IdempotencyCache) Put(key, turnID string, result ToolExecutionResult, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry{
		TurnID:    turnID,
		Result:    result,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Len reports the number of entries, including any not yet lazily expired.
func (c *IdempotencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
