package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/metrics"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)
	odd := env.createAccount(t, "auditor")

	tests := []struct {
		name     string
		account  string
		resource string
		actions  []string
		want     bool
	}{
		{"admin ban", admin.ID, permission.ResourceUser, []string{permission.ActionBan}, true},
		{"admin several", admin.ID, permission.ResourceUser, []string{permission.ActionBan, permission.ActionImpersonate}, true},
		{"user ban", user.ID, permission.ResourceUser, []string{permission.ActionBan}, false},
		{"unknown role", odd.ID, permission.ResourceUser, []string{permission.ActionList}, false},
		{"unknown account", "missing", permission.ResourceUser, []string{permission.ActionList}, false},
		{"empty account", "", permission.ResourceUser, []string{permission.ActionList}, false},
		{"unknown resource", admin.ID, "billing", []string{permission.ActionList}, false},
		{"no actions", admin.ID, permission.ResourceUser, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, env.admin.HasPermission(ctx, tt.account, tt.resource, tt.actions...))
		})
	}
}

func TestHasPermission_BannedAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAccount(t, models.RoleAdmin)
	require.NoError(t, env.store.SetBan(admin.ID, true, "", nil))

	assert.False(t, env.admin.HasPermission(
		context.Background(), admin.ID, permission.ResourceUser, permission.ActionList))
}

func TestBanUser_RevokesSessionsAndBlocksSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)
	userSession := env.signIn(t, user.ID)

	require.NoError(t, env.admin.BanUser(ctx, admin.ID, user.ID, "spam", 0))

	assert.Equal(t, 0, env.countSessions(t, user.ID))
	_, _, err := env.sessions.GetSession(ctx, userSession.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = env.accounts.SignInEmail(ctx, user.Email, testPassword, SessionMeta{})
	assert.ErrorIs(t, err, core.ErrAccountBanned)

	banned, err := env.store.GetAccountByID(user.ID)
	require.NoError(t, err)
	assert.True(t, banned.Banned)
	assert.Equal(t, "spam", banned.BanReason)
	assert.Nil(t, banned.BanExpires)

	require.NoError(t, env.admin.UnbanUser(ctx, admin.ID, user.ID))
	result, err := env.accounts.SignInEmail(ctx, user.Email, testPassword, SessionMeta{})
	require.NoError(t, err)
	assert.NotNil(t, result.Session)
}

func TestBanUser_Expiring(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)

	require.NoError(t, env.admin.BanUser(ctx, admin.ID, user.ID, "cool off", time.Hour))
	_, err := env.sessions.CreateSession(ctx, user.ID, SessionMeta{})
	assert.ErrorIs(t, err, core.ErrAccountBanned)

	env.clock.Advance(2 * time.Hour)
	_, err = env.sessions.CreateSession(ctx, user.ID, SessionMeta{})
	assert.NoError(t, err)
}

func TestBanUser_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)
	other := env.createAccount(t, models.RoleUser)

	assert.ErrorIs(t, env.admin.BanUser(ctx, user.ID, other.ID, "", 0), core.ErrForbidden)
	assert.ErrorIs(t, env.admin.BanUser(ctx, admin.ID, admin.ID, "", 0), core.ErrForbidden)
	assert.ErrorIs(t, env.admin.BanUser(ctx, admin.ID, "missing", "", 0), core.ErrTargetNotFound)

	fresh, err := env.store.GetAccountByID(other.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Banned)
}

func TestRemoveUser_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)
	env.enableTwoFactor(t, user.ID)
	_, err := env.identities.LinkProvider(ctx, user.ID, "google", "g-1", nil)
	require.NoError(t, err)
	_, err = env.passkeys.AddPasskey(ctx, user.ID, PasskeyInput{CredentialID: "cred-1", PublicKey: "pk"})
	require.NoError(t, err)
	require.NoError(t, env.accounts.RequestPasswordReset(ctx, user.Email, ""))
	env.signIn(t, user.ID)

	require.NoError(t, env.admin.RemoveUser(ctx, admin.ID, user.ID))

	_, err = env.store.GetAccountByID(user.ID)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
	links, err := env.store.CountIdentityLinks(user.ID)
	require.NoError(t, err)
	assert.Zero(t, links)
	assert.Equal(t, 0, env.countSessions(t, user.ID))
	_, err = env.store.GetTwoFactor(user.ID)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
	codes, err := env.store.CountBackupCodes(user.ID)
	require.NoError(t, err)
	assert.Zero(t, codes)
	passkeys, err := env.store.ListPasskeys(user.ID)
	require.NoError(t, err)
	assert.Empty(t, passkeys)
	_, err = env.store.GetIdentityByExternalID("google", "g-1")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestRemoveUser_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)

	assert.ErrorIs(t, env.admin.RemoveUser(ctx, user.ID, admin.ID), core.ErrForbidden)
	assert.ErrorIs(t, env.admin.RemoveUser(ctx, admin.ID, admin.ID), core.ErrForbidden)
	assert.ErrorIs(t, env.admin.RemoveUser(ctx, admin.ID, "missing"), core.ErrTargetNotFound)
}

func TestSetRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)

	assert.ErrorIs(t, env.admin.SetRole(ctx, admin.ID, user.ID, "root"), core.ErrInvalidRequest)
	assert.ErrorIs(t, env.admin.SetRole(ctx, admin.ID, admin.ID, models.RoleUser), core.ErrForbidden)
	assert.ErrorIs(t, env.admin.SetRole(ctx, user.ID, user.ID, models.RoleAdmin), core.ErrForbidden)

	require.NoError(t, env.admin.SetRole(ctx, admin.ID, user.ID, models.RoleAdmin))
	assert.True(t, env.admin.HasPermission(ctx, user.ID, permission.ResourceUser, permission.ActionBan))
}

func TestListUsersAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAccount(t, models.RoleAdmin)
	user := env.createAccount(t, models.RoleUser)
	env.signIn(t, user.ID)
	env.signIn(t, user.ID)

	accounts, page, err := env.admin.ListUsers(ctx, admin.ID, store.NewPaginationParams(1, 10, ""))
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.EqualValues(t, 2, page.Total)

	_, _, err = env.admin.ListUsers(ctx, user.ID, store.NewPaginationParams(1, 10, ""))
	assert.ErrorIs(t, err, core.ErrForbidden)

	sessions, err := env.admin.ListUserSessions(ctx, admin.ID, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	_, err = env.admin.ListUserSessions(ctx, admin.ID, "missing")
	assert.ErrorIs(t, err, core.ErrTargetNotFound)

	n, err := env.admin.RevokeUserSessions(ctx, admin.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, env.countSessions(t, user.ID))

	_, err = env.admin.RevokeUserSessions(ctx, user.ID, admin.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestListAuditLogs(t *testing.T) {
	s := setupTestStore(t)
	audit := NewAuditService(s, true, 10)
	t.Cleanup(func() { _ = audit.Shutdown(context.Background()) })
	sessions := NewSessionService(s, nil, 0, time.Hour)
	admin := NewAdminService(s, permission.Default(), sessions, audit, metrics.NewNoopMetrics())

	ctx := context.Background()
	require.NoError(t, audit.LogSync(ctx, AuditLogEntry{
		EventType:    models.EventUserBanned,
		ResourceType: models.ResourceAccount,
		Action:       "Banned user",
		Details:      models.AuditDetails{"password": "hunter2"},
		Success:      true,
	}))

	adminAccount := &models.Account{ID: "admin-1", Email: "admin@example.com", Name: "admin-1", Role: models.RoleAdmin}
	link := &models.IdentityLink{ID: "link-1", AccountID: "admin-1", ProviderID: models.ProviderCredential, ExternalAccountID: "admin-1"}
	require.NoError(t, s.CreateAccountWithIdentity(adminAccount, link))

	logs, _, err := admin.ListAuditLogs(ctx, "admin-1", store.NewPaginationParams(1, 10, ""), store.AuditLogFilters{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "***REDACTED***", logs[0].Details["password"])

	_, _, err = admin.ListAuditLogs(ctx, "nobody", store.NewPaginationParams(1, 10, ""), store.AuditLogFilters{})
	assert.ErrorIs(t, err, core.ErrForbidden)
}
