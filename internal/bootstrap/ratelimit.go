package bootstrap

import (
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds rate limiting middlewares for different route groups
type rateLimitMiddlewares struct {
	signIn        gin.HandlerFunc // email and passkey sign-in, sign-up
	twoFactor     gin.HandlerFunc // second factor verification
	passwordReset gin.HandlerFunc // reset and verification mail
	general       gin.HandlerFunc // every other API route
}

// setupRateLimiting configures rate limiting middlewares based on configuration
// Accepts an optional go-redis client
func setupRateLimiting(
	cfg *config.Config,
	recorder core.Recorder,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOpMiddleware := func(c *gin.Context) { c.Next() }
		log.Printf("Rate limiting disabled")
		return rateLimitMiddlewares{
			signIn:        noOpMiddleware,
			twoFactor:     noOpMiddleware,
			passwordReset: noOpMiddleware,
			general:       noOpMiddleware,
		}, nil
	}
	return createRateLimiters(cfg, recorder, redisClient)
}

// createRateLimiters creates rate limiting middlewares for all route groups
func createRateLimiters(
	cfg *config.Config,
	recorder core.Recorder,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	if storeType == middleware.RateLimitStoreRedis {
		log.Printf("Rate limiting enabled (store: redis, shared across instances)")
	} else {
		log.Printf("Rate limiting enabled (store: memory, single instance only)")
	}

	var firstErr error
	createLimiter := func(route string, limit int, period time.Duration) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Limit:           int64(limit),
			Period:          period,
			Route:           route,
			StoreType:       storeType,
			RedisClient:     redisClient,
			CleanupInterval: cfg.RateLimitCleanupInt,
			Metrics:         recorder,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to create rate limiter for %s: %w", route, err)
		}
		return limiter
	}

	limiters := rateLimitMiddlewares{
		signIn:        createLimiter("sign-in", cfg.SignInRateLimit, cfg.SignInRateWindow),
		twoFactor:     createLimiter("two-factor", cfg.SignInRateLimit, cfg.SignInRateWindow),
		passwordReset: createLimiter("password-reset", cfg.SignInRateLimit, cfg.SignInRateWindow),
		general:       createLimiter("general", cfg.DefaultRateLimit, time.Minute),
	}
	if firstErr != nil {
		return rateLimitMiddlewares{}, firstErr
	}
	return limiters, nil
}
