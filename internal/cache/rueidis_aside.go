package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/accountgate/internal/core"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisaside"
)

var _ core.Cache[struct{}] = (*RueidisAsideCache[struct{}])(nil)

// RueidisAsideCache is a Redis-backed core.Cache using rueidisaside.
// Values are stored as JSON. Reads go through rueidis client-side caching and
// Redis invalidates the local copy of a key on every write or delete, so a
// session revoked on one replica stops authenticating on all of them.
type RueidisAsideCache[T any] struct {
	client    rueidisaside.CacheAsideClient
	keyPrefix string
	clientTTL time.Duration
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	ClientTTL time.Duration
	// CacheSizeEachConn is the client-side cache size per connection in bytes.
	CacheSizeEachConn int
}

// NewRueidisAsideCache creates a Redis cache with client-side caching.
func NewRueidisAsideCache[T any](
	ctx context.Context,
	opts RedisOptions,
) (*RueidisAsideCache[T], error) {
	size := opts.CacheSizeEachConn
	if size <= 0 {
		size = 32 * 1024 * 1024
	}
	client, err := rueidisaside.NewClient(rueidisaside.ClientOption{
		ClientOption: rueidis.ClientOption{
			InitAddress:       []string{opts.Addr},
			Password:          opts.Password,
			SelectDB:          opts.DB,
			CacheSizeEachConn: size,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rueidisaside client: %w", err)
	}

	c := &RueidisAsideCache[T]{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		clientTTL: opts.ClientTTL,
	}
	if err := c.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return c, nil
}

func decode[T any](raw string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

// Get retrieves a value, served from the client-side cache when possible.
func (r *RueidisAsideCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	raw, err := r.client.Get(
		ctx,
		r.clientTTL,
		r.keyPrefix+key,
		func(ctx context.Context, key string) (string, error) {
			return "", ErrCacheMiss
		},
	)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if raw == "" {
		return zero, ErrCacheMiss
	}
	return decode[T](raw)
}

// GetWithFetch uses rueidisaside's locking so fetchFunc runs once per key
// across concurrent callers and replicas.
func (r *RueidisAsideCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	var zero T
	raw, err := r.client.Get(
		ctx,
		ttl,
		r.keyPrefix+key,
		func(ctx context.Context, _ string) (string, error) {
			value, err := fetchFunc(ctx, key)
			if err != nil {
				return "", err
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return string(encoded), nil
		},
	)
	if err != nil {
		return zero, err
	}
	return decode[T](raw)
}

// Set stores a value in Redis with TTL.
func (r *RueidisAsideCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	cmd := r.client.Client().B().Set().
		Key(r.keyPrefix + key).
		Value(string(encoded)).
		Ex(ttl).
		Build()
	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key from Redis.
func (r *RueidisAsideCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Client().Do(ctx, r.client.Client().B().Del().Key(r.keyPrefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RueidisAsideCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisAsideCache[T]) Health(ctx context.Context) error {
	if err := r.client.Client().Do(ctx, r.client.Client().B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
