package acl

import (
	"sync"
	"time"

	"github.com/agentsql/bridge/pkg/models"
)

// staffCache is a bounded-TTL cache of staff lookups, generalized from the
// teacher's DedupeCache (a boolean seen/not-seen map) into a cache that
// stores the lookup result itself. Per the spec's open question (iii), a
// short negative TTL is supported but optional (negativeTTL == 0 disables
// negative caching, matching the spec's baseline behavior of only caching
// positive results).
type staffCache struct {
	mu          sync.Mutex
	entries     map[string]cacheEntry
	ttl         time.Duration
	negativeTTL time.Duration
}

type cacheEntry struct {
	result    staffResult
	expiresAt time.Time
}

func newStaffCache(ttlSeconds, negativeTTLSeconds int) *staffCache {
	return &staffCache{
		entries:     make(map[string]cacheEntry),
		ttl:         time.Duration(ttlSeconds) * time.Second,
		negativeTTL: time.Duration(negativeTTLSeconds) * time.Second,
	}
}

func (c *staffCache) get(email string) (staffResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[email]
	if !ok {
		return staffResult{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, email)
		return staffResult{}, false
	}
	return entry.result, true
}

func (c *staffCache) put(email string, record *models.StaffRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = cacheEntry{
		result:    staffResult{record: record, found: true},
		expiresAt: time.Now().Add(c.ttl),
	}
}

// putNegative caches a "not found" result only if a negative TTL is
// configured; otherwise it is a no-op, leaving every lookup to hit the
// backing store, matching the spec's documented default.
func (c *staffCache) putNegative(email string) {
	if c.negativeTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = cacheEntry{
		result:    staffResult{found: false},
		expiresAt: time.Now().Add(c.negativeTTL),
	}
}

func (c *staffCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
