package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      core.Recorder
	MetricsCache         core.Cache[int64]
	MetricsCacheCloser   func() error
	SessionCache         core.Cache[services.SessionEntry]
	SessionCacheCloser   func() error
	RateLimitRedisClient *redis.Client

	// Services
	AuditService *services.AuditService
	Services     serviceSet

	// HTTP
	OAuthProviders map[string]*auth.OAuthProvider
	GoogleVerifier *auth.IDTokenVerifier
	HandlerSet     handlerSet
	Router         *gin.Engine
	Server         *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}
	ctx := context.Background()

	// Phase 1: Validate configuration
	validateAllConfiguration(cfg)

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, caches, and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, app.MetricsCacheCloser, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Session lookups
	app.SessionCache, app.SessionCacheCloser, err = initializeSessionCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() error {
	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
	)

	var err error
	app.Services, err = initializeServices(
		app.Config,
		app.DB,
		app.SessionCache,
		app.AuditService,
		app.MetricsRecorder,
	)
	return err
}

// initializeHTTPLayer sets up OAuth providers, handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	oauthHTTPClient, err := createOAuthHTTPClient(app.Config)
	if err != nil {
		return err
	}
	app.OAuthProviders, app.GoogleVerifier = initializeOAuthProviders(app.Config, oauthHTTPClient)
	logOAuthProvidersStatus(app.OAuthProviders)

	// Handlers
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.Services,
		app.AuditService,
		app.OAuthProviders,
		app.MetricsRecorder,
	)

	// Router
	app.Router, err = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}

	// HTTP Server
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addAuditServiceShutdownJob(m, app.AuditService)
	addAuditLogCleanupJob(m, app.Config, app.AuditService)
	addSessionPurgeJob(m, app.DB)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addGoogleVerifierShutdownJob(m, app.GoogleVerifier)
	addCacheCleanupJob(m, "Metrics cache", app.MetricsCacheCloser)
	addCacheCleanupJob(m, "Session cache", app.SessionCacheCloser)
	addDatabaseShutdownJob(m, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}
