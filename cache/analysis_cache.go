package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisCache caches serialized analysis responses in Redis, keyed by analysis kind and
// a hash of the filter that produced them.
type AnalysisCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewAnalysisCache creates a cache. A nil client makes every lookup miss.
func NewAnalysisCache(redis *RedisClient, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{redis: redis, ttl: ttl}
}

// Get loads a cached result into dest and reports whether it was found.
func (c *AnalysisCache) Get(ctx context.Context, kind, dataHash string, dest interface{}) bool {
	if c == nil || c.redis == nil {
		return false
	}
	return c.redis.Get(ctx, analysisKey(kind, dataHash), dest) == nil
}

// Set caches value for the configured TTL.
func (c *AnalysisCache) Set(ctx context.Context, kind, dataHash string, value interface{}) error {
	if c == nil || c.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	return c.redis.Set(ctx, analysisKey(kind, dataHash), value, c.ttl)
}

// Invalidate drops every cached analysis, used after new data is stored.
func (c *AnalysisCache) Invalidate(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.DeletePrefix(ctx, "analysis:")
}

func analysisKey(kind, dataHash string) string {
	return fmt.Sprintf("analysis:%s:%s", kind, dataHash)
}

// GenerateDataHash creates a hash of the request parameters to key cached results.
func GenerateDataHash(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	return fmt.Sprintf("%x", md5.Sum(jsonData))
}
