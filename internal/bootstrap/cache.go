package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/cache"
	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/services"
)

const (
	cacheInitTimeout = 5 * time.Second

	sessionCachePrefix = "accountgate:sessions:"
	metricsCachePrefix = "accountgate:metrics:"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return prometheusMetrics
}

// initializeMetricsCache initializes the gauge count cache. It shares the
// session cache backend so replicas agree on the cached counts.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[int64], func() error, error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cacheInitTimeout)
	defer cancel()

	switch cfg.SessionCacheType {
	case config.SessionCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[int64](ctx, redisOptions(cfg, metricsCachePrefix))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis-aside metrics cache: %w", err)
		}
		log.Printf("Metrics cache: redis-aside (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[int64]()
		log.Println("Metrics cache: memory (single instance only)")
		return c, c.Close, nil
	}
}

// initializeSessionCache initializes the token lookup cache in front of the
// sessions table (always enabled, defaults to memory)
func initializeSessionCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[services.SessionEntry], func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheInitTimeout)
	defer cancel()

	switch cfg.SessionCacheType {
	case config.SessionCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[services.SessionEntry](
			ctx,
			redisOptions(cfg, sessionCachePrefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis-aside session cache: %w", err)
		}
		log.Printf(
			"Session cache: redis-aside (addr=%s, db=%d, ttl=%s, client_ttl=%s)",
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.SessionCacheTTL,
			cfg.SessionCacheClientTTL,
		)
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[services.SessionEntry]()
		log.Printf("Session cache: memory (ttl=%s, single instance only)", cfg.SessionCacheTTL)
		return c, c.Close, nil
	}
}
