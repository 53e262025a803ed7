package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPurgeInterval = time.Hour
	sessionPurgeGrace    = 24 * time.Hour
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		log.Println("Redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob flushes buffered audit entries on shutdown
func addAuditServiceShutdownJob(m *graceful.Manager, auditService *services.AuditService) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down audit service: %v", err)
			return err
		}
		return nil
	})
}

// runPeriodically calls fn immediately and then on every tick until ctx ends
func runPeriodically(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// addAuditLogCleanupJob adds periodic audit log cleanup job
func addAuditLogCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
) {
	if !cfg.EnableAuditLogging || cfg.AuditLogRetention <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, 24*time.Hour, func() {
			if deleted, err := auditService.CleanupOldLogs(cfg.AuditLogRetention); err != nil {
				log.Printf("Failed to cleanup old audit logs: %v", err)
			} else if deleted > 0 {
				log.Printf("Cleaned up %d old audit logs", deleted)
			}
		})
		return nil
	})
}

// purgeExpiredSessions removes sessions that expired before cutoff.
// Verification tokens are kept so a late click still reports TOKEN_EXPIRED.
func purgeExpiredSessions(db *store.Store, cutoff time.Time) {
	if deleted, err := db.DeleteExpiredSessions(cutoff); err != nil {
		log.Printf("Failed to purge expired sessions: %v", err)
	} else if deleted > 0 {
		log.Printf("Purged %d expired sessions", deleted)
	}
}

// addSessionPurgeJob adds periodic removal of long expired sessions. Lookups
// already treat expired sessions as absent.
func addSessionPurgeJob(m *graceful.Manager, db *store.Store) {
	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, sessionPurgeInterval, func() {
			purgeExpiredSessions(db, time.Now().UTC().Add(-sessionPurgeGrace))
		})
		return nil
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder core.Recorder,
	metricsCache core.Cache[int64],
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		cacheWrapper := metrics.NewCacheWrapper(db, metricsCache)
		runPeriodically(ctx, cfg.MetricsGaugeUpdateInterval, func() {
			if err := metrics.UpdateGauges(ctx, cacheWrapper, recorder, cfg.MetricsCacheTTL); err != nil {
				gaugeErrorLogger.logIfNeeded("gauge_update", err)
			}
		})
		return nil
	})
}

// addGoogleVerifierShutdownJob stops the JWKS refresh loop
func addGoogleVerifierShutdownJob(m *graceful.Manager, verifier *auth.IDTokenVerifier) {
	if verifier == nil {
		return
	}

	m.AddShutdownJob(func() error {
		verifier.Close()
		return nil
	})
}

// addCacheCleanupJob closes a cache on shutdown
func addCacheCleanupJob(m *graceful.Manager, name string, closer func() error) {
	if closer == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := closer(); err != nil {
			log.Printf("Error closing %s: %v", name, err)
		} else {
			log.Printf("%s closed", name)
		}
		return nil
	})
}

// addDatabaseShutdownJob closes the connection pool
func addDatabaseShutdownJob(m *graceful.Manager, db *store.Store) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
			return err
		}
		return nil
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	mu              sync.Mutex
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
	now             func() time.Time
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger() *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
		now:             time.Now,
	}
}

// logIfNeeded logs an error only if rate limit allows and reports whether it did
func (e *errorLogger) logIfNeeded(operation string, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	lastTime, exists := e.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < e.rateLimitWindow {
		return false
	}

	log.Printf("Database query failed for %s: %v (further errors will be suppressed for %v)",
		operation, err, e.rateLimitWindow)
	e.lastErrorTimes[operation] = now
	return true
}

var gaugeErrorLogger = newErrorLogger()
