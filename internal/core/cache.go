package core

import (
	"context"
	"time"
)

// Cache[T] holds short-lived copies of database reads, keyed by string.
// Session lookups cache SessionEntry snapshots by token hash and the metrics
// gauges cache int64 counts. Implementations return cache.ErrCacheMiss for
// absent or expired keys.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	// Set with a non-positive ttl removes the key
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	// Delete invalidates a key after the underlying row changed (session
	// revoked, account banned)
	Delete(ctx context.Context, key string) error

	// GetWithFetch returns the cached value or loads it with fetch and stores
	// it for ttl. Errors from fetch are returned unchanged and nothing is
	// cached. The Redis implementation runs fetch once per key across
	// replicas.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetch func(ctx context.Context, key string) (T, error),
	) (T, error)

	Health(ctx context.Context) error
	Close() error
}
