package services

import (
	"sync"
	"time"
)

// DedupKey identifies one reminder trigger. DueAt ties the key to a specific
// reminder date so a rescheduled reminder starts with a clean slate.
type DedupKey struct {
	LeadID        uint
	DueAt         int64
	IntervalHours float64
}

// DedupCache remembers which reminder triggers already fired. It is
// process-local; entries are lost on restart.
type DedupCache struct {
	window  time.Duration
	mu      sync.Mutex
	entries map[DedupKey]time.Time // key -> expiry
}

func NewDedupCache(window time.Duration) *DedupCache {
	return &DedupCache{
		window:  window,
		entries: make(map[DedupKey]time.Time),
	}
}

// TryMark atomically checks whether key is already recorded and, if not,
// records it. It returns true when the caller won the right to fire.
// The entry is kept until the later of now+window and holdUntil.
func (c *DedupCache) TryMark(key DedupKey, now, holdUntil time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return false
	}

	expiry := now.Add(c.window)
	if holdUntil.After(expiry) {
		expiry = holdUntil
	}
	c.entries[key] = expiry
	return true
}

// Seen reports whether key is recorded and not yet expired.
func (c *DedupCache) Seen(key DedupKey, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[key]
	return ok && now.Before(expiry)
}

// Purge removes expired entries and returns how many were dropped.
func (c *DedupCache) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
