package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/cache"
	"github.com/go-authgate/accountgate/internal/config"

	"github.com/redis/go-redis/v9"
)

const redisConnTimeout = 5 * time.Second

// Two Redis clients may share REDIS_ADDR: rueidis backs the session and
// gauge caches and go-redis backs rate limiting, since ulule/limiter is
// written against go-redis.

// redisOptions configures a rueidis-aside cache under its own key prefix
func redisOptions(cfg *config.Config, prefix string) cache.RedisOptions {
	return cache.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: prefix,
		ClientTTL: cfg.SessionCacheClientTTL,
	}
}

// initializeRateLimitRedisClient returns nil unless the sign-in and general
// limiters are configured to count in Redis
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != config.RateLimitStoreRedis {
		return nil, nil //nolint:nilnil // limiter uses its memory store
	}

	// counters are advisory; fail fast instead of queueing sign-ins
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: redisConnTimeout,
		ReadTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisConnTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("rate limit redis %s/%d: %w", cfg.RedisAddr, cfg.RedisDB, err)
	}

	log.Printf("Rate limit counters in Redis (%s, db %d)", cfg.RedisAddr, cfg.RedisDB)
	return rdb, nil
}
