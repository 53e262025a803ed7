package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
)

// CacheWrapper provides a read-through cache for gauge counts.
// It queries the database on cache miss and updates the cache for subsequent requests,
// so several replicas refreshing gauges do not hammer the database.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetActiveSessionsCount retrieves the count of non-expired sessions.
func (m *CacheWrapper) GetActiveSessionsCount(
	ctx context.Context,
	ttl time.Duration,
) (int64, error) {
	return m.getCountWithCache(ctx, "sessions:active", ttl, m.store.CountActiveSessions)
}

// GetAccountsCount retrieves the total number of accounts.
func (m *CacheWrapper) GetAccountsCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "accounts:total", ttl, m.store.CountAccounts)
}

// GetBannedAccountsCount retrieves the number of currently banned accounts.
func (m *CacheWrapper) GetBannedAccountsCount(
	ctx context.Context,
	ttl time.Duration,
) (int64, error) {
	return m.getCountWithCache(ctx, "accounts:banned", ttl, m.store.CountBannedAccounts)
}

// getCountWithCache retrieves a count using the cache-aside pattern.
func (m *CacheWrapper) getCountWithCache(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func() (int64, error),
) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		key,
		ttl,
		func(ctx context.Context, key string) (int64, error) {
			return fetchFunc()
		},
	)
}

// UpdateGauges refreshes every gauge from the (cached) database counts.
// Query errors are recorded and the affected gauge keeps its previous value.
// The returned error joins every failed query.
func UpdateGauges(ctx context.Context, w *CacheWrapper, rec core.Recorder, ttl time.Duration) error {
	var errs []error

	sessions, err := w.GetActiveSessionsCount(ctx, ttl)
	if err != nil {
		rec.RecordDatabaseQueryError("count_active_sessions")
		errs = append(errs, fmt.Errorf("count_active_sessions: %w", err))
	} else {
		rec.SetActiveSessionsCount(int(sessions))
	}

	total, err := w.GetAccountsCount(ctx, ttl)
	if err != nil {
		rec.RecordDatabaseQueryError("count_accounts")
		return errors.Join(append(errs, fmt.Errorf("count_accounts: %w", err))...)
	}
	banned, err := w.GetBannedAccountsCount(ctx, ttl)
	if err != nil {
		rec.RecordDatabaseQueryError("count_banned_accounts")
		return errors.Join(append(errs, fmt.Errorf("count_banned_accounts: %w", err))...)
	}
	rec.SetAccountsCount(int(total), int(banned))
	return errors.Join(errs...)
}
