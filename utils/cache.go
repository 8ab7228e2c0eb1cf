package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default cache ttl set to 3600 seconds
	defaultCacheTTL = time.Hour
)

// RedisCache stores serialized read models under prefix.
type RedisCache struct {
	rc     *redis.Client
	prefix string
}

// NewRedisCache returns nil when rc is nil so callers skip caching.
func NewRedisCache(rc *redis.Client, prefix string) *RedisCache {
	if rc == nil {
		return nil
	}
	if prefix != "" {
		prefix += ":"
	}
	return &RedisCache{rc: rc, prefix: prefix}
}

// Get returns cached bytes for key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.rc.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil && Sugar != nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// Set stores b for ttl, or the default TTL when ttl is not positive.
func (c *RedisCache) Set(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// Delete drops key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Del(ctx, c.prefix+key).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache delete failed key=%s err=%v", key, err)
	}
}
