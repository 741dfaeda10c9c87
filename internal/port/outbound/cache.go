package outbound

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by CachePort.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CachePort defines generic cache operations.
type CachePort interface {
	// Get retrieves a value from cache.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL. A zero TTL keeps the value until deleted.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error
}
