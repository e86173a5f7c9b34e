package cache

import (
	"context"
	"sync"
	"time"

	"solar-impact-insights/dataset"
)

// SeriesCache stores source reads keyed by source name.
type SeriesCache interface {
	GetSeries(ctx context.Context, key string) (*dataset.Series, bool)
	SetSeries(ctx context.Context, key string, s *dataset.Series, ttl time.Duration) error
}

type memoryEntry struct {
	series  *dataset.Series
	expires time.Time
}

// MemoryCache is an in-process SeriesCache whose entries expire after their TTL.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// GetSeries returns a copy of the cached series when present and not expired.
func (c *MemoryCache) GetSeries(_ context.Context, key string) (*dataset.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return copySeries(e.series), true
}

// SetSeries stores a copy of s. A non-positive ttl never expires.
func (c *MemoryCache) SetSeries(_ context.Context, key string, s *dataset.Series, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{series: copySeries(s)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func copySeries(s *dataset.Series) *dataset.Series {
	if s == nil {
		return nil
	}
	return &dataset.Series{Column: s.Column, Points: append([]dataset.Point(nil), s.Points...)}
}
