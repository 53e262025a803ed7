package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache is an in-process core.Cache with lazy expiration.
// Suitable for single-instance deployments; every replica has its own copy,
// so explicit Delete only invalidates the local process.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	now   func() time.Time
}

// NewMemoryCache creates a new memory cache instance.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]entry[T]),
		now:   time.Now,
	}
}

func (m *MemoryCache[T]) lookup(key string, now time.Time) (T, bool) {
	item, ok := m.items[key]
	if !ok || !now.Before(item.expiresAt) {
		var zero T
		return zero, false
	}
	return item.value, true
}

// Get retrieves a value from cache.
func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if value, ok := m.lookup(key, m.now()); ok {
		return value, nil
	}
	var zero T
	return zero, ErrCacheMiss
}

// Set stores a value in cache with TTL. A non-positive TTL removes the key.
func (m *MemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		delete(m.items, key)
		return nil
	}
	m.items[key] = entry[T]{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Delete removes a key from cache.
func (m *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// PurgeExpired drops expired entries and returns how many were removed.
func (m *MemoryCache[T]) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (m *MemoryCache[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close drops every entry.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]entry[T])
	return nil
}

// Health always succeeds for the memory cache.
func (m *MemoryCache[T]) Health(ctx context.Context) error {
	return nil
}

// GetWithFetch retrieves a value using the cache-aside pattern.
// On cache miss, fetchFunc is called and the result is stored in cache.
// No stampede protection is provided.
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = m.Set(ctx, key, value, ttl)
	return value, nil
}
