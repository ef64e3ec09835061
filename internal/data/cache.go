package data

import (
	"sync"
	"time"

	"scotland-capacity/internal/model"
)

// SummaryCache holds the most recent capacity summary for the web layer.
// It starts empty, is filled by the first refresh and is replaced wholesale
// on every later one, so readers never observe a half-written summary.
// Stored summaries must be treated as read-only.
type SummaryCache struct {
	mu        sync.RWMutex
	summary   *model.CapacitySummary
	updatedAt time.Time
	source    string
	ttl       time.Duration
	now       func() time.Time
}

// NewSummaryCache creates an empty cache. A zero ttl never expires entries.
func NewSummaryCache(ttl time.Duration) *SummaryCache {
	return &SummaryCache{ttl: ttl, now: time.Now}
}

// Get returns the cached summary if one is present and not expired.
func (c *SummaryCache) Get() (*model.CapacitySummary, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.summary == nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(c.updatedAt.Add(c.ttl)) {
		return nil, false
	}
	return c.summary, true
}

// Set swaps in a new summary. source records where it came from
// (live, snapshot or empty).
func (c *SummaryCache) Set(s *model.CapacitySummary, source string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary = s
	c.source = source
	c.updatedAt = c.now()
}

// Source reports where the cached summary came from and when it was stored.
func (c *SummaryCache) Source() (string, time.Time) {
	if c == nil {
		return "", time.Time{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source, c.updatedAt
}

// Clear empties the cache.
func (c *SummaryCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary = nil
	c.source = ""
	c.updatedAt = time.Time{}
}
