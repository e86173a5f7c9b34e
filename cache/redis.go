package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"solar-impact-insights/dataset"
)

var errNotInitialized = errors.New("redis client not initialized")

// RedisClient wraps redis.Client with JSON values.
type RedisClient struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisClient connects to Redis. It returns nil when the server cannot be reached,
// which callers treat as caching disabled.
func NewRedisClient(host, port, password string, log *zap.Logger) *RedisClient {
	if log == nil {
		log = zap.NewNop()
	}
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️  Failed to connect to Redis", zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return nil
	}

	log.Info("✅ Connected to Redis", zap.String("addr", addr))
	return &RedisClient{client: client, log: log}
}

// WrapRedisClient adapts an existing client.
func WrapRedisClient(client *redis.Client, log *zap.Logger) *RedisClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisClient{client: client, log: log}
}

// Set stores a value in Redis with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get retrieves a value from Redis
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete removes keys from Redis
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}
	return r.client.Del(ctx, keys...).Err()
}

// DeletePrefix removes every key starting with prefix.
func (r *RedisClient) DeletePrefix(ctx context.Context, prefix string) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Exists checks if a key exists in Redis
func (r *RedisClient) Exists(ctx context.Context, key string) bool {
	if r == nil || r.client == nil {
		return false
	}

	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false
	}

	return result > 0
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// GetSeries implements SeriesCache.
func (r *RedisClient) GetSeries(ctx context.Context, key string) (*dataset.Series, bool) {
	var s dataset.Series
	if err := r.Get(ctx, seriesKey(key), &s); err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, errNotInitialized) {
			r.log.Warn("⚠️  Series cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return &s, true
}

// SetSeries implements SeriesCache.
func (r *RedisClient) SetSeries(ctx context.Context, key string, s *dataset.Series, ttl time.Duration) error {
	return r.Set(ctx, seriesKey(key), s, ttl)
}

func seriesKey(key string) string {
	return "series:" + key
}
