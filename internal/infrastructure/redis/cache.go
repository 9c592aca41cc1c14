package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache implements ports.Cache over a shared Redis connection. Its one
// consumer is the credential resolver, which stores JSON client snapshots
// keyed by secret; entries are bounded by TTL and removed eagerly on
// rotation or deactivation, so nothing here is ever the source of truth.
type RedisCache struct {
	r redis.Cmdable
	// prefix namespaces cache entries away from the rate-limit window
	// counters that live on the same Redis instance.
	prefix string
}

// NewRedisCache creates a cache namespaced under prefix.
func NewRedisCache(r redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{r: r, prefix: prefix}
}

func (c *RedisCache) namespaced(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get returns the stored bytes for key. A missing key is ok=false, not an
// error; callers fall through to the durable store.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.r.Get(ctx, c.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.r.Set(ctx, c.namespaced(key), value, ttl).Err()
}

// Delete removes key. Deleting an absent key succeeds: invalidation after a
// credential rotation must be idempotent.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.r.Del(ctx, c.namespaced(key)).Err()
}
