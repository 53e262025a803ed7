package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutesRequirePermission(t *testing.T) {
	app := newTestApp(t)
	user := app.createAccount(t, models.RoleUser)
	target := app.createAccount(t, models.RoleUser)
	c := app.newClient(t)
	c.signIn(user.Email)

	tests := []struct {
		name string
		do   func() int
	}{
		{"list-users", func() int { return c.get("/api/auth/admin/list-users").Code }},
		{"ban-user", func() int {
			return c.post("/api/auth/admin/ban-user", map[string]any{"userId": target.ID}).Code
		}},
		{"set-role", func() int {
			return c.post("/api/auth/admin/set-role", map[string]any{"userId": target.ID, "role": "admin"}).Code
		}},
		{"impersonate-user", func() int {
			return c.post("/api/auth/admin/impersonate-user", map[string]any{"userId": target.ID}).Code
		}},
		{"audit-logs", func() int { return c.get("/api/auth/admin/audit-logs").Code }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusForbidden, tt.do())
		})
	}
}

func TestAdminListUsers(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	for range 3 {
		app.createAccount(t, models.RoleUser)
	}
	c := app.newClient(t)
	c.signIn(admin.Email)

	w := c.get("/api/auth/admin/list-users?page=1&pageSize=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Users      []struct{ ID string } `json:"users"`
		Pagination struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
			HasNext    bool  `json:"hasNext"`
		} `json:"pagination"`
	}
	decode(t, w).into(t, &out)
	assert.Len(t, out.Users, 2)
	assert.Equal(t, int64(4), out.Pagination.Total)
	assert.Equal(t, 2, out.Pagination.TotalPages)
	assert.True(t, out.Pagination.HasNext)
}

func TestAdminBanAndUnban(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	target := app.createAccount(t, models.RoleUser)
	victim := app.newClient(t)
	victim.signIn(target.Email)
	c := app.newClient(t)
	c.signIn(admin.Email)

	w := c.post("/api/auth/admin/ban-user", map[string]any{
		"userId":       target.ID,
		"banReason":    "spam",
		"banExpiresIn": 3600,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, victim.currentSession(), "ban revokes every session")

	w = app.newClient(t).post("/api/auth/sign-in/email", map[string]any{
		"email":    target.Email,
		"password": testPassword,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(core.KindAccountBanned), errorCode(t, w))

	w = c.post("/api/auth/admin/ban-user", map[string]any{"userId": admin.ID})
	assert.Equal(t, http.StatusForbidden, w.Code, "admins cannot ban themselves")

	w = c.post("/api/auth/admin/unban-user", map[string]any{"userId": target.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	app.newClient(t).signIn(target.Email)
}

func TestAdminSetRoleAndRemoveUser(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	target := app.createAccount(t, models.RoleUser)
	c := app.newClient(t)
	c.signIn(admin.Email)

	w := c.post("/api/auth/admin/set-role", map[string]any{"userId": target.ID, "role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.post("/api/auth/admin/set-role", map[string]any{"userId": target.ID, "role": models.RoleAdmin})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	promoted, err := app.store.GetAccountByID(target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	w = c.post("/api/auth/admin/remove-user", map[string]any{"userId": target.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err = app.store.GetAccountByID(target.ID)
	assert.Error(t, err)

	w = c.post("/api/auth/admin/remove-user", map[string]any{"userId": target.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(core.KindTargetNotFound), errorCode(t, w))
}

func TestAdminUserSessions(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	target := app.createAccount(t, models.RoleUser)
	victim := app.newClient(t)
	victim.signIn(target.Email)
	c := app.newClient(t)
	c.signIn(admin.Email)

	w := c.post("/api/auth/admin/list-user-sessions", map[string]any{"userId": target.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var listed struct {
		Sessions []struct{ ID string } `json:"sessions"`
	}
	decode(t, w).into(t, &listed)
	assert.Len(t, listed.Sessions, 1)

	w = c.post("/api/auth/admin/revoke-user-sessions", map[string]any{"userId": target.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var revoked struct {
		Revoked int `json:"revoked"`
	}
	decode(t, w).into(t, &revoked)
	assert.Equal(t, 1, revoked.Revoked)
	assert.Nil(t, victim.currentSession())
}

func TestAdminImpersonation(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	target := app.createAccount(t, models.RoleUser)
	c := app.newClient(t)
	c.signIn(admin.Email)

	w := c.post("/api/auth/admin/impersonate-user", map[string]any{"userId": admin.ID})
	assert.Equal(t, http.StatusForbidden, w.Code, "self impersonation")

	w = c.post("/api/auth/admin/impersonate-user", map[string]any{"userId": target.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	current := c.currentSession()
	require.NotNil(t, current)
	assert.Equal(t, target.ID, current.User.ID)
	assert.Equal(t, admin.ID, current.Session.ImpersonatedBy)

	w = c.get("/api/auth/list-sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, admin.ID, w.Header().Get(middleware.ImpersonatedByHeader))

	w = c.post("/api/auth/admin/impersonate-user", map[string]any{"userId": target.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(core.KindNoNestedImpersonation), errorCode(t, w))

	w = c.post("/api/auth/admin/stop-impersonating", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stopped struct {
		Resumed bool `json:"resumed"`
	}
	decode(t, w).into(t, &stopped)
	assert.True(t, stopped.Resumed)

	current = c.currentSession()
	require.NotNil(t, current)
	assert.Equal(t, admin.ID, current.User.ID)

	w = c.post("/api/auth/admin/stop-impersonating", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(core.KindNotImpersonating), errorCode(t, w))
}

func TestAdminHasPermission(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	user := app.createAccount(t, models.RoleUser)

	tests := []struct {
		name       string
		email      string
		permission map[string][]string
		want       bool
	}{
		{"admin list users", admin.Email, map[string][]string{"user": {"list", "ban"}}, true},
		{"admin unknown action", admin.Email, map[string][]string{"user": {"teleport"}}, false},
		{"user list users", user.Email, map[string][]string{"user": {"list"}}, false},
		{"empty request", admin.Email, map[string][]string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := app.newClient(t)
			c.signIn(tt.email)
			w := c.post("/api/auth/admin/has-permission", map[string]any{"permission": tt.permission})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var out struct {
				Allowed bool `json:"allowed"`
			}
			decode(t, w).into(t, &out)
			assert.Equal(t, tt.want, out.Allowed)
		})
	}
}

func TestAdminAuditLogs(t *testing.T) {
	app := newTestApp(t)
	admin := app.createAccount(t, models.RoleAdmin)
	c := app.newClient(t)
	c.signIn(admin.Email)

	require.NoError(t, app.audit.LogSync(context.Background(), services.AuditLogEntry{
		EventType:      models.EventUserBanned,
		Severity:       models.SeverityWarning,
		ActorAccountID: admin.ID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     "someone",
		Action:         "Banned someone",
		Success:        true,
	}))

	w := c.get("/api/auth/admin/audit-logs?event_type=USER_BANNED&success=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Logs []struct {
			Action string `json:"action"`
		} `json:"logs"`
	}
	decode(t, w).into(t, &out)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, "Banned someone", out.Logs[0].Action)

	w = c.get("/api/auth/admin/audit-logs/export?event_type=USER_BANNED")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit_logs_")

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Event Time", rows[0][0])
	assert.Equal(t, "USER_BANNED", rows[1][1])
	assert.Equal(t, admin.ID, rows[1][3])
}
