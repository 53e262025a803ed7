package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/store"
	"github.com/go-authgate/accountgate/internal/util"
	"github.com/go-authgate/accountgate/internal/version"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 2 * time.Second

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	recorder core.Recorder,
	rateLimitRedisClient *redis.Client,
) (*gin.Engine, error) {
	log.Printf("Gin mode: %s", gin.Mode())
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.RequestInfoMiddleware())

	// Setup session middleware
	setupSessionMiddleware(r, cfg)

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(db))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Setup rate limiting
	rateLimiters, err := setupRateLimiting(cfg, recorder, rateLimitRedisClient)
	if err != nil {
		return nil, err
	}

	// Setup all routes
	setupAllRoutes(r, cfg, h, rateLimiters, recorder)

	// Log server startup info
	logServerStartup(cfg)

	return r, nil
}

// setupSessionMiddleware configures the cookie carrying the session token,
// OAuth state and pending two-factor challenge
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.CookieName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// emailScreen returns the sign-up and sign-in email screen, or a pass-through
// when screening is disabled
func emailScreen(cfg *config.Config, recorder core.Recorder) gin.HandlerFunc {
	if !cfg.EnableEmailScreening {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.EmailScreen(middleware.EmailScreenConfig{
		DisposableDomains: cfg.DisposableDomains,
		CheckMX:           cfg.EnableMXCheck,
		LookupTimeout:     cfg.MXLookupTimeout,
		Metrics:           recorder,
	})
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	limits rateLimitMiddlewares,
	recorder core.Recorder,
) {
	requireAuth := middleware.RequireAuth(h.sessions)
	optionalAuth := middleware.OptionalAuth(h.sessions)
	screen := emailScreen(cfg, recorder)

	api := r.Group("/api/auth")
	api.Use(limits.general)
	if cfg.EnableCSRFCheck {
		api.Use(middleware.CSRFMiddleware(cfg.TrustedOrigins))
	} else {
		log.Printf("WARNING: CSRF origin check disabled (ENABLE_CSRF_CHECK=false)")
	}

	// Email and password
	api.POST("/sign-up/email", limits.signIn, screen, h.auth.SignUpEmail)
	api.POST("/sign-in/email", limits.signIn, screen, h.auth.SignInEmail)
	api.POST("/sign-out", h.auth.SignOut)
	api.GET("/get-session", h.auth.GetSession)
	api.POST("/send-verification-email", limits.passwordReset, h.auth.SendVerificationEmail)
	api.GET("/verify-email", h.auth.VerifyEmail)
	api.POST("/request-password-reset", limits.passwordReset, h.auth.RequestPasswordReset)
	api.POST("/reset-password", limits.passwordReset, h.auth.ResetPassword)
	api.POST("/change-password", requireAuth, h.auth.ChangePassword)
	api.POST("/update-user", requireAuth, h.auth.UpdateUser)
	api.POST("/delete-user", requireAuth, h.auth.DeleteUser)

	// Social sign-in and account linking
	api.GET("/sign-in/social/:provider", h.oauth.SignInSocial)
	api.GET("/link-social/:provider", requireAuth, h.oauth.LinkSocial)
	api.GET("/callback/:provider", optionalAuth, h.oauth.Callback)
	api.GET("/list-accounts", requireAuth, h.identity.ListAccounts)
	api.POST("/unlink-account", requireAuth, h.identity.UnlinkAccount)

	// Session management
	api.GET("/list-sessions", requireAuth, h.session.ListSessions)
	api.POST("/revoke-session", requireAuth, h.session.RevokeSession)
	api.POST("/revoke-other-sessions", requireAuth, h.session.RevokeOtherSessions)

	// Two-factor
	tf := api.Group("/two-factor")
	{
		tf.POST("/enable", requireAuth, h.twoFactor.Enable)
		tf.POST("/disable", requireAuth, h.twoFactor.Disable)
		tf.GET("/status", requireAuth, h.twoFactor.Status)
		tf.POST("/generate-backup-codes", requireAuth, h.twoFactor.GenerateBackupCodes)
		tf.POST("/verify-totp", limits.twoFactor, optionalAuth, h.twoFactor.VerifyTOTP)
		tf.POST("/verify-backup-code", limits.twoFactor, h.twoFactor.VerifyBackupCode)
	}

	// Passkeys
	api.POST("/sign-in/passkey", limits.signIn, h.passkey.SignInPasskey)
	pk := api.Group("/passkey", requireAuth)
	{
		pk.POST("/add-passkey", h.passkey.AddPasskey)
		pk.GET("/list-user-passkeys", h.passkey.ListPasskeys)
		pk.POST("/delete-passkey", h.passkey.DeletePasskey)
	}

	// Admin
	adm := api.Group("/admin", requireAuth)
	{
		adm.GET("/list-users",
			middleware.RequirePermission(h.permissions, permission.ResourceUser, permission.ActionList),
			h.admin.ListUsers)
		adm.POST("/ban-user", h.admin.BanUser)
		adm.POST("/unban-user", h.admin.UnbanUser)
		adm.POST("/remove-user", h.admin.RemoveUser)
		adm.POST("/set-role", h.admin.SetRole)
		adm.POST("/list-user-sessions", h.admin.ListUserSessions)
		adm.POST("/revoke-user-sessions", h.admin.RevokeUserSessions)
		adm.POST("/impersonate-user", h.admin.ImpersonateUser)
		adm.POST("/stop-impersonating", h.admin.StopImpersonating)
		adm.POST("/has-permission", h.admin.HasPermission)

		auditGate := middleware.RequirePermission(
			h.permissions,
			permission.ResourceAudit,
			permission.ActionList,
		)
		adm.GET("/audit-logs", auditGate, h.admin.ListAuditLogs)
		adm.GET("/audit-logs/export", auditGate, h.admin.ExportAuditLogs)
	}

	r.GET("/api/check-availability", limits.general, h.auth.CheckAvailability)
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		switch err := db.Health(ctx); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("%s starting on %s", version.Short(), cfg.ServerAddr)
	log.Printf("Public base URL: %s", cfg.BaseURL)
	log.Printf("API mounted at %s/api/auth", cfg.BaseURL)
	if cfg.RequireEmailVerification {
		log.Printf("Email verification required before password sign-in")
	}
	if cfg.DefaultAdminEmail != "" {
		log.Printf("Default admin: %s (seeded on first run)", cfg.DefaultAdminEmail)
	}
}
