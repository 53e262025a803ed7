package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/mailer"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse"

// fakeClock is a settable clock shared by every service under test
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testEnv wires every service against one in-memory store
type testEnv struct {
	store         *store.Store
	clock         *fakeClock
	passwords     *auth.BcryptHasher
	totp          *auth.TOTP
	mail          *mailer.LogMailer
	sessions      *SessionService
	identities    *IdentityService
	twoFactor     *TwoFactorService
	admin         *AdminService
	impersonation *ImpersonationService
	accounts      *AccountService
	passkeys      *PasskeyService
}

type envOption func(*AccountConfig)

func withEmailVerification() envOption {
	return func(c *AccountConfig) { c.RequireEmailVerification = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	return newTestEnvWithMailer(t, nil, opts...)
}

func newTestEnvWithMailer(t *testing.T, m core.Mailer, opts ...envOption) *testEnv {
	t.Helper()
	s := setupTestStore(t)
	clock := newFakeClock()
	rec := metrics.NewNoopMetrics()
	passwords := auth.NewBcryptHasher(bcrypt.MinCost)
	totp := auth.NewTOTP("AccountGate")
	logMailer := mailer.NewLogMailer()
	if m == nil {
		m = logMailer
	}

	cfg := AccountConfig{
		BaseURL:           "http://localhost:8080",
		MinPasswordLength: 8,
		ResetTokenTTL:     time.Hour,
		FreshSessionAge:   24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sessions := NewSessionService(s, nil, 0, 7*24*time.Hour)
	sessions.now = clock.Now
	identities := NewIdentityService(s, nil)
	identities.now = clock.Now
	twoFactor := NewTwoFactorService(s, passwords, totp, 10, 10*time.Minute, nil, rec)
	twoFactor.now = clock.Now
	admin := NewAdminService(s, permission.Default(), sessions, nil, rec)
	admin.now = clock.Now
	impersonation := NewImpersonationService(s, sessions, admin, time.Hour, nil, rec)
	verifier := auth.NewVerificationSigner("test-verification-secret", "accountgate", time.Hour)
	accounts := NewAccountService(
		s, passwords, sessions, identities, twoFactor, verifier, m, nil, rec, cfg,
	)
	accounts.now = clock.Now
	passkeys := NewPasskeyService(s, sessions, nil, rec)
	passkeys.now = clock.Now

	return &testEnv{
		store:         s,
		clock:         clock,
		passwords:     passwords,
		totp:          totp,
		mail:          logMailer,
		sessions:      sessions,
		identities:    identities,
		twoFactor:     twoFactor,
		admin:         admin,
		impersonation: impersonation,
		accounts:      accounts,
		passkeys:      passkeys,
	}
}

// createAccount inserts a verified account with a password credential
func (e *testEnv) createAccount(t *testing.T, role string) *models.Account {
	t.Helper()
	hash, err := e.passwords.Hash(testPassword)
	require.NoError(t, err)

	id := uuid.New().String()
	now := e.clock.Now()
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
	require.NoError(t, e.store.CreateAccountWithIdentity(account, link))
	return account
}

// createSocialAccount inserts an account whose only link is an OAuth identity
func (e *testEnv) createSocialAccount(t *testing.T, provider string) *models.Account {
	t.Helper()
	id := uuid.New().String()
	now := e.clock.Now()
	account := &models.Account{
		ID:            id,
		Email:         "social-" + id[:8] + "@example.com",
		EmailVerified: true,
		Name:          "social-" + id[:8],
		Role:          models.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	link := &models.IdentityLink{
		ID:                uuid.New().String(),
		AccountID:         id,
		ProviderID:        provider,
		ExternalAccountID: "ext-" + id[:8],
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, e.store.CreateAccountWithIdentity(account, link))
	return account
}

func (e *testEnv) signIn(t *testing.T, accountID string) *IssuedSession {
	t.Helper()
	issued, err := e.sessions.CreateSession(context.Background(), accountID, SessionMeta{
		IPAddress: "127.0.0.1",
		UserAgent: "test",
	})
	require.NoError(t, err)
	return issued
}

// enableTwoFactor runs the full enrollment and returns the secret and codes
func (e *testEnv) enableTwoFactor(t *testing.T, accountID string) *Enrollment {
	t.Helper()
	ctx := context.Background()
	enrollment, err := e.twoFactor.Enable(ctx, accountID, testPassword)
	require.NoError(t, err)
	code, err := e.totp.Code(enrollment.Secret, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.twoFactor.VerifyEnrollment(ctx, accountID, code))
	return enrollment
}

func (e *testEnv) countSessions(t *testing.T, accountID string) int {
	t.Helper()
	sessions, err := e.store.ListActiveSessions(accountID, time.Time{})
	require.NoError(t, err)
	return len(sessions)
}

// wrongCode returns a six-digit code that differs from code in every digit
func wrongCode(code string) string {
	out := []byte(code)
	for i, c := range out {
		out[i] = '0' + (c-'0'+5)%10
	}
	return string(out)
}
