package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:8080"

// testConfig returns a configuration that needs no network access
func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:                ":0",
		BaseURL:                   testOrigin,
		SessionSecret:             "bootstrap-test-secret",
		SessionMaxAge:             3600,
		CookieName:                "accountgate_session",
		TrustedOrigins:            []string{testOrigin},
		EnableCSRFCheck:           true,
		DatabaseDriver:            "sqlite",
		DatabaseDSN:               ":memory:",
		SessionLifetime:           time.Hour,
		ImpersonationLifetime:     time.Hour,
		ResetTokenTTL:             time.Hour,
		VerificationTokenTTL:      time.Hour,
		VerificationSecret:        "verification-test-secret",
		MinPasswordLength:         8,
		TwoFactorIssuer:           "AccountGate",
		TwoFactorEnrollmentWindow: 10 * time.Minute,
		BackupCodeCount:           10,
		MailerMode:                config.MailerModeLog,
		EnableRateLimit:           true,
		RateLimitStore:            config.RateLimitStoreMemory,
		RateLimitCleanupInt:       time.Minute,
		SignInRateLimit:           3,
		SignInRateWindow:          time.Minute,
		DefaultRateLimit:          100,
		EnableEmailScreening:      true,
		DisposableDomains:         []string{"mailinator.com"},
		SessionCacheType:          config.SessionCacheTypeMemory,
		SessionCacheTTL:           time.Minute,
	}
}

// newTestRouter wires the full HTTP stack the way Run does
func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := initializeDatabase(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessionCache, closer, err := initializeSessionCache(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer() })

	recorder := metrics.NewNoopMetrics()
	audit := services.NewAuditService(db, false, 0)
	svc, err := initializeServices(cfg, db, sessionCache, audit, recorder)
	require.NoError(t, err)

	h := initializeHandlers(cfg, svc, audit, nil, recorder)
	r, err := setupRouter(cfg, db, h, recorder, nil)
	require.NoError(t, err)
	return r
}

func postJSON(r http.Handler, path, origin string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env middleware.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error, w.Body.String())
	return string(env.Error.Code)
}

func TestValidateAllConfigurationAcceptsTestConfig(t *testing.T) {
	assert.NotPanics(t, func() { validateAllConfiguration(testConfig()) })
}

func TestWarnInsecureDefaults(t *testing.T) {
	cfg := testConfig()
	assert.Empty(t, warnInsecureDefaults(cfg))

	cfg.SessionSecret = insecureDefaults["SESSION_SECRET"]
	assert.Equal(t, []string{"SESSION_SECRET"}, warnInsecureDefaults(cfg))
}

func TestInitializeDatabaseSeedsAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultAdminEmail = "root@example.com"
	cfg.DefaultAdminPassword = "bootstrap-password"

	db, err := initializeDatabase(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	admin, err := db.GetAccountByEmail("root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestInitializeDatabaseUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDriver = "oracle"
	_, err := initializeDatabase(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInitializeMetrics(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := &config.Config{MetricsEnabled: enabled}
		m := initializeMetrics(cfg)
		require.NotNil(t, m)
	}
}

func TestInitializeMetricsCacheDisabled(t *testing.T) {
	ctx := context.Background()

	// Metrics disabled - no cache
	c, closer, err := initializeMetricsCache(
		ctx,
		&config.Config{MetricsEnabled: false, MetricsGaugeUpdateEnabled: true},
	)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, closer)

	// Gauge updates disabled - no cache
	c, closer, err = initializeMetricsCache(
		ctx,
		&config.Config{MetricsEnabled: true, MetricsGaugeUpdateEnabled: false},
	)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, closer)
}

func TestInitializeMetricsCacheMemory(t *testing.T) {
	cfg := &config.Config{
		MetricsEnabled:            true,
		MetricsGaugeUpdateEnabled: true,
		SessionCacheType:          config.SessionCacheTypeMemory,
	}
	c, closer, err := initializeMetricsCache(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NotNil(t, closer)
	_ = closer()
}

func TestInitializeSessionCacheRedisAside(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SessionCacheType = config.SessionCacheTypeRedisAside
	cfg.RedisAddr = mr.Addr()

	c, closer, err := initializeSessionCache(context.Background(), cfg)
	if err != nil {
		// miniredis does not implement client tracking on every version
		t.Skipf("redis-aside cache unavailable against miniredis: %v", err)
	}
	require.NotNil(t, c)
	assert.NoError(t, closer())
}

func TestInitializeSessionCacheRedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.SessionCacheType = config.SessionCacheTypeRedisAside
	cfg.RedisAddr = "127.0.0.1:1"

	_, _, err := initializeSessionCache(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInitializeRateLimitRedisClient(t *testing.T) {
	ctx := context.Background()

	client, err := initializeRateLimitRedisClient(ctx, &config.Config{EnableRateLimit: false})
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = initializeRateLimitRedisClient(ctx, &config.Config{
		EnableRateLimit: true,
		RateLimitStore:  config.RateLimitStoreMemory,
	})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = initializeRateLimitRedisClient(ctx, &config.Config{
		EnableRateLimit: true,
		RateLimitStore:  config.RateLimitStoreRedis,
		RedisAddr:       mr.Addr(),
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()

	mr.Close()
	_, err = initializeRateLimitRedisClient(ctx, &config.Config{
		EnableRateLimit: true,
		RateLimitStore:  config.RateLimitStoreRedis,
		RedisAddr:       mr.Addr(),
	})
	assert.Error(t, err)
}

func TestInitializeMailer(t *testing.T) {
	m, err := initializeMailer(&config.Config{MailerMode: config.MailerModeLog})
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = initializeMailer(&config.Config{
		MailerMode:       config.MailerModeHTTP,
		MailerAPIURL:     "http://mail.example.com/send",
		MailerAPIKey:     "key",
		MailerAuthMode:   "simple",
		MailerAuthHeader: "Authorization",
		MailerTimeout:    time.Second,
		MailerMaxRetries: 1,
	})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestInitializeOAuthProvidersNone(t *testing.T) {
	providers, verifier := initializeOAuthProviders(&config.Config{}, http.DefaultClient)
	assert.Empty(t, providers)
	assert.Nil(t, verifier)
}

func TestInitializeOAuthProvidersGitHub(t *testing.T) {
	// Missing credentials
	providers, _ := initializeOAuthProviders(&config.Config{
		GitHubOAuthEnabled: true,
	}, http.DefaultClient)
	assert.Empty(t, providers)

	// Valid credentials
	providers, _ = initializeOAuthProviders(&config.Config{
		GitHubOAuthEnabled: true,
		GitHubClientID:     "client-id",
		GitHubClientSecret: "client-secret",
	}, http.DefaultClient)
	assert.Contains(t, providers, "github")
	assert.Equal(t, []string{"github"}, getProviderNames(providers))
}

func TestSetupRateLimitingDisabled(t *testing.T) {
	limiters, err := setupRateLimiting(&config.Config{EnableRateLimit: false}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, limiters.signIn)
	require.NotNil(t, limiters.twoFactor)
	require.NotNil(t, limiters.passwordReset)
	require.NotNil(t, limiters.general)

	// Verify noop middlewares don't panic
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.NotPanics(t, func() { limiters.signIn(c) })
}

func TestSetupRateLimitingRejectsBadRate(t *testing.T) {
	cfg := testConfig()
	cfg.SignInRateLimit = 0
	_, err := setupRateLimiting(cfg, metrics.NewNoopMetrics(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign-in")
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouterMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsToken = "scrape-token"
	r := newTestRouter(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterCSRF(t *testing.T) {
	r := newTestRouter(t, testConfig())
	body := map[string]any{
		"name":     "Ada Lovelace",
		"email":    "ada@example.com",
		"password": "long-enough-password",
	}

	w := postJSON(r, "/api/auth/sign-up/email", "https://evil.example", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(r, "/api/auth/sign-up/email", testOrigin, body)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouterEmailScreen(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := postJSON(r, "/api/auth/sign-up/email", testOrigin, map[string]any{
		"name":     "Throwaway",
		"email":    "someone@mailinator.com",
		"password": "long-enough-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(core.KindEmailRejected), errorCode(t, w))
}

func TestRouterSignInRateLimit(t *testing.T) {
	cfg := testConfig()
	r := newTestRouter(t, cfg)
	body := map[string]any{"email": "nobody@example.com", "password": "wrong-password"}

	for range cfg.SignInRateLimit {
		w := postJSON(r, "/api/auth/sign-in/email", testOrigin, body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := postJSON(r, "/api/auth/sign-in/email", testOrigin, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, string(core.KindRateLimited), errorCode(t, w))
}

func TestRouterAdminRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/admin/list-users", nil)
	req.Header.Set("Accept", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPurgeExpiredSessions(t *testing.T) {
	cfg := testConfig()
	db, err := initializeDatabase(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	account := &models.Account{
		ID:    "purge-account",
		Email: "purge@example.com",
		Name:  "purge",
		Role:  models.RoleUser,
	}
	require.NoError(t, db.CreateAccountWithIdentity(account, &models.IdentityLink{
		ID:                "purge-link",
		AccountID:         account.ID,
		ProviderID:        models.ProviderCredential,
		ExternalAccountID: account.ID,
		PasswordHash:      "hash",
	}))
	for id, expiresAt := range map[string]time.Time{
		"long-expired": now.Add(-48 * time.Hour),
		"just-expired": now.Add(-time.Hour),
	} {
		require.NoError(t, db.CreateSession(&models.Session{
			ID:        id,
			TokenHash: "hash-" + id,
			AccountID: account.ID,
			CreatedAt: expiresAt.Add(-time.Hour),
			ExpiresAt: expiresAt,
		}))
	}

	purgeExpiredSessions(db, now.Add(-sessionPurgeGrace))

	_, err = db.GetSessionByID("long-expired")
	assert.Error(t, err)
	_, err = db.GetSessionByID("just-expired")
	assert.NoError(t, err, "inside the grace period")
}

func TestCreateHTTPServer(t *testing.T) {
	srv := createHTTPServer(
		&config.Config{ServerAddr: ":8080"},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	require.NotNil(t, srv)
	assert.Equal(t, ":8080", srv.Addr)
}

func TestErrorLogger(t *testing.T) {
	el := newErrorLogger()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	el.now = func() time.Time { return now }

	assert.True(t, el.logIfNeeded("test_op", assert.AnError))
	assert.False(t, el.logIfNeeded("test_op", assert.AnError), "suppressed inside the window")
	assert.True(t, el.logIfNeeded("other_op", assert.AnError))

	now = now.Add(el.rateLimitWindow)
	assert.True(t, el.logIfNeeded("test_op", assert.AnError))
}
