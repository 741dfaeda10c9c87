package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weappkit/server/internal/port/outbound"
)

const cacheKeyPrefix = "weappkit:"

// cache implements outbound.CachePort on Redis.
type cache struct {
	client redis.UniversalClient
}

// NewCache creates a Redis-backed cache adapter.
func NewCache(client redis.UniversalClient) outbound.CachePort {
	return &cache{client: client}
}

func (c *cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", outbound.ErrCacheMiss
		}
		return "", err
	}
	return value, nil
}

func (c *cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err()
}

func (c *cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, cacheKeyPrefix+key).Err()
}

// Compile-time check
var _ outbound.CachePort = (*cache)(nil)
