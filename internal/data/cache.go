package data

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/macroquant/macrorun/internal/telemetry"
)

// Cache stores fetched series bytes. Loader instances own a cache for the
// lifetime of a run; entries are never invalidated.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

// NewCache returns an in-memory cache.
func NewCache() Cache {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

// NewAutoCache returns a redis-backed cache when an address is given, an
// in-memory cache otherwise.
func NewAutoCache(redisAddr string) Cache {
	if redisAddr != "" {
		return NewRedisCache(redis.NewClient(&redis.Options{Addr: redisAddr}))
	}
	return NewCache()
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	val []byte
	exp time.Time
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		telemetry.CacheMisses.Inc()
		return nil, false
	}
	telemetry.CacheHits.Inc()
	return e.val, true
}

func (c *memoryCache) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.entries[key] = e
}

// redisCache adapts a redis client to the Cache interface. Failures degrade
// to cache misses; the loader refetches.
type redisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client, timeout: 500 * time.Millisecond}
}

func (c *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		telemetry.CacheMisses.Inc()
		return nil, false
	}
	telemetry.CacheHits.Inc()
	return val, true
}

func (c *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.client.Set(ctx, key, val, ttl).Err()
}
