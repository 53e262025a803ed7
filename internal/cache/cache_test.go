package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionEntry struct {
	ID        string
	AccountID string
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache[sessionEntry]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "hash-1", sessionEntry{ID: "s1", AccountID: "a1"}, time.Minute))

	value, err := c.Get(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", value.AccountID)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache[int64]()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 100, time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss, "entry expires exactly at its deadline")

	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_NonPositiveTTLDeletes(t *testing.T) {
	c := NewMemoryCache[int64]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "k", 2, 0))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_DeleteAndClose(t *testing.T) {
	c := NewMemoryCache[int64]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Delete(ctx, "a"))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Health(ctx))
}

func TestMemoryCache_GetWithFetch(t *testing.T) {
	c := NewMemoryCache[int64]()
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context, key string) (int64, error) {
		calls.Add(1)
		return 7, nil
	}

	v, err := c.GetWithFetch(ctx, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = c.GetWithFetch(ctx, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryCache_GetWithFetch_FetchError(t *testing.T) {
	c := NewMemoryCache[int64]()
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := c.GetWithFetch(ctx, "k", time.Minute, func(context.Context, string) (int64, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss, "failed fetch must not populate the cache")
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache[int64]()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_ = c.Set(ctx, "shared", n, time.Minute)
			_, _ = c.Get(ctx, "shared")
			_ = c.Delete(ctx, "shared")
		}(int64(i))
	}
	wg.Wait()
}
