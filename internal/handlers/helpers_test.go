package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/mailer"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testBaseURL  = "http://localhost:8080"
	testPassword = "correct-horse"
)

// testApp wires real services over an in-memory store behind the same
// routes the server mounts
type testApp struct {
	store     *store.Store
	passwords *auth.BcryptHasher
	totp      *auth.TOTP
	mail      *mailer.LogMailer
	audit     *services.AuditService
	sessions  *services.SessionService
	twoFactor *services.TwoFactorService
	router    *gin.Engine
}

type appOption func(*appConfig)

type appConfig struct {
	providers map[string]*auth.OAuthProvider
	accounts  services.AccountConfig
}

func withProvider(p *auth.OAuthProvider) appOption {
	return func(c *appConfig) { c.providers[p.GetProvider()] = p }
}

func withEmailVerification() appOption {
	return func(c *appConfig) { c.accounts.RequireEmailVerification = true }
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := appConfig{
		providers: map[string]*auth.OAuthProvider{},
		accounts: services.AccountConfig{
			BaseURL:           testBaseURL,
			MinPasswordLength: 8,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := metrics.NewNoopMetrics()
	audit := services.NewAuditService(s, true, 64)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = audit.Shutdown(ctx)
	})
	passwords := auth.NewBcryptHasher(bcrypt.MinCost)
	totp := auth.NewTOTP("AccountGate")
	logMailer := mailer.NewLogMailer()

	sessionSvc := services.NewSessionService(s, nil, 0, 7*24*time.Hour)
	identities := services.NewIdentityService(s, audit)
	twoFactor := services.NewTwoFactorService(s, passwords, totp, 10, 10*time.Minute, audit, rec)
	admin := services.NewAdminService(s, permission.Default(), sessionSvc, audit, rec)
	impersonation := services.NewImpersonationService(s, sessionSvc, admin, time.Hour, audit, rec)
	verifier := auth.NewVerificationSigner("test-verification-secret", "accountgate", time.Hour)
	accounts := services.NewAccountService(
		s, passwords, sessionSvc, identities, twoFactor, verifier, logMailer, audit, rec, cfg.accounts,
	)
	passkeys := services.NewPasskeyService(s, sessionSvc, audit, rec)

	authHandler := NewAuthHandler(accounts, sessionSvc, testBaseURL)
	oauthHandler := NewOAuthHandler(cfg.providers, accounts, identities, testBaseURL, rec)
	sessionHandler := NewSessionHandler(sessionSvc)
	identityHandler := NewIdentityHandler(identities)
	twoFactorHandler := NewTwoFactorHandler(twoFactor, accounts, authHandler)
	passkeyHandler := NewPasskeyHandler(passkeys, authHandler)
	adminHandler := NewAdminHandler(admin, impersonation, audit)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))

	requireAuth := middleware.RequireAuth(sessionSvc)
	optionalAuth := middleware.OptionalAuth(sessionSvc)

	api := r.Group("/api/auth")
	api.POST("/sign-up/email", authHandler.SignUpEmail)
	api.POST("/sign-in/email", authHandler.SignInEmail)
	api.POST("/sign-out", authHandler.SignOut)
	api.GET("/get-session", authHandler.GetSession)
	api.POST("/send-verification-email", authHandler.SendVerificationEmail)
	api.GET("/verify-email", authHandler.VerifyEmail)
	api.POST("/request-password-reset", authHandler.RequestPasswordReset)
	api.POST("/reset-password", authHandler.ResetPassword)
	api.POST("/change-password", requireAuth, authHandler.ChangePassword)
	api.POST("/update-user", requireAuth, authHandler.UpdateUser)
	api.POST("/delete-user", requireAuth, authHandler.DeleteUser)

	api.GET("/sign-in/social/:provider", oauthHandler.SignInSocial)
	api.GET("/link-social/:provider", requireAuth, oauthHandler.LinkSocial)
	api.GET("/callback/:provider", optionalAuth, oauthHandler.Callback)

	api.GET("/list-sessions", requireAuth, sessionHandler.ListSessions)
	api.POST("/revoke-session", requireAuth, sessionHandler.RevokeSession)
	api.POST("/revoke-other-sessions", requireAuth, sessionHandler.RevokeOtherSessions)

	api.GET("/list-accounts", requireAuth, identityHandler.ListAccounts)
	api.POST("/unlink-account", requireAuth, identityHandler.UnlinkAccount)

	tf := api.Group("/two-factor")
	tf.POST("/enable", requireAuth, twoFactorHandler.Enable)
	tf.POST("/disable", requireAuth, twoFactorHandler.Disable)
	tf.GET("/status", requireAuth, twoFactorHandler.Status)
	tf.POST("/generate-backup-codes", requireAuth, twoFactorHandler.GenerateBackupCodes)
	tf.POST("/verify-totp", optionalAuth, twoFactorHandler.VerifyTOTP)
	tf.POST("/verify-backup-code", twoFactorHandler.VerifyBackupCode)

	api.POST("/sign-in/passkey", passkeyHandler.SignInPasskey)
	pk := api.Group("/passkey", requireAuth)
	pk.POST("/add-passkey", passkeyHandler.AddPasskey)
	pk.GET("/list-user-passkeys", passkeyHandler.ListPasskeys)
	pk.POST("/delete-passkey", passkeyHandler.DeletePasskey)

	adm := api.Group("/admin", requireAuth)
	adm.GET("/list-users", adminHandler.ListUsers)
	adm.POST("/ban-user", adminHandler.BanUser)
	adm.POST("/unban-user", adminHandler.UnbanUser)
	adm.POST("/remove-user", adminHandler.RemoveUser)
	adm.POST("/set-role", adminHandler.SetRole)
	adm.POST("/list-user-sessions", adminHandler.ListUserSessions)
	adm.POST("/revoke-user-sessions", adminHandler.RevokeUserSessions)
	adm.POST("/impersonate-user", adminHandler.ImpersonateUser)
	adm.POST("/stop-impersonating", adminHandler.StopImpersonating)
	adm.POST("/has-permission", adminHandler.HasPermission)
	adm.GET("/audit-logs", adminHandler.ListAuditLogs)
	adm.GET("/audit-logs/export", adminHandler.ExportAuditLogs)

	r.GET("/api/check-availability", authHandler.CheckAvailability)

	return &testApp{
		store:     s,
		passwords: passwords,
		totp:      totp,
		mail:      logMailer,
		audit:     audit,
		sessions:  sessionSvc,
		twoFactor: twoFactor,
		router:    r,
	}
}

// createAccount inserts a verified account with a password credential
func (a *testApp) createAccount(t *testing.T, role string) *models.Account {
	t.Helper()
	hash, err := a.passwords.Hash(testPassword)
	require.NoError(t, err)

	id := uuid.New().String()
	now := time.Now().UTC()
	account := &models.Account{
		ID:            id,
		Email:         "user-" + id[:8] + "@example.com",
		EmailVerified: true,
		Name:          "user-" + id[:8],
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	link := &models.IdentityLink{
		ID:                uuid.New().String(),
		AccountID:         id,
		ProviderID:        models.ProviderCredential,
		ExternalAccountID: id,
		PasswordHash:      hash,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, a.store.CreateAccountWithIdentity(account, link))
	return account
}

// client carries the cookie session between requests the way a browser does
type client struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
	bearer  string
	accept  string
}

func (a *testApp) newClient(t *testing.T) *client {
	return &client{t: t, app: a, cookies: map[string]*http.Cookie{}}
}

// signIn signs in through the API and keeps the resulting cookie
func (c *client) signIn(email string) *envelope {
	c.t.Helper()
	w := c.post("/api/auth/sign-in/email", map[string]any{"email": email, "password": testPassword})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	return decode(c.t, w)
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accept != "" {
		req.Header.Set("Accept", c.accept)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	c.app.router.ServeHTTP(w, req)

	resp := http.Response{Header: w.Header()}
	for _, ck := range resp.Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, body any) *httptest.ResponseRecorder {
	if body == nil {
		body = map[string]any{}
	}
	return c.do(http.MethodPost, path, body)
}

// envelope mirrors middleware.Envelope with raw data for per-test decoding
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) *envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return &env
}

func (e *envelope) into(t *testing.T, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, out))
}

// errorCode returns the error kind of a failed response
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, w)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error.Code
}
