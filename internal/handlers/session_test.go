package handlers

import (
	"net/http"
	"testing"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionItem struct {
	ID      string `json:"id"`
	Current bool   `json:"current"`
}

func listSessions(t *testing.T, c *client) []sessionItem {
	t.Helper()
	w := c.get("/api/auth/list-sessions")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out []sessionItem
	decode(t, w).into(t, &out)
	return out
}

func TestListSessionsMarksCurrent(t *testing.T) {
	app := newTestApp(t)
	account := app.createAccount(t, models.RoleUser)
	app.newClient(t).signIn(account.Email)
	c := app.newClient(t)
	c.signIn(account.Email)

	list := listSessions(t, c)
	require.Len(t, list, 2)
	current := 0
	for _, s := range list {
		if s.Current {
			current++
		}
	}
	assert.Equal(t, 1, current)
}

func TestRevokeSession(t *testing.T) {
	app := newTestApp(t)
	account := app.createAccount(t, models.RoleUser)
	other := app.newClient(t)
	other.signIn(account.Email)
	c := app.newClient(t)
	c.signIn(account.Email)

	var otherID, selfID string
	for _, s := range listSessions(t, c) {
		if s.Current {
			selfID = s.ID
		} else {
			otherID = s.ID
		}
	}

	w := c.post("/api/auth/revoke-session", map[string]any{"id": otherID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, other.currentSession())
	assert.NotNil(t, c.currentSession())

	w = c.post("/api/auth/revoke-session", map[string]any{"id": selfID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		SignedOut bool `json:"signedOut"`
	}
	decode(t, w).into(t, &out)
	assert.True(t, out.SignedOut)
	assert.Nil(t, c.currentSession())
}

func TestRevokeSessionOfAnotherAccount(t *testing.T) {
	app := newTestApp(t)
	victim := app.createAccount(t, models.RoleUser)
	v := app.newClient(t)
	v.signIn(victim.Email)
	victimSession := listSessions(t, v)[0].ID

	attacker := app.createAccount(t, models.RoleUser)
	c := app.newClient(t)
	c.signIn(attacker.Email)

	w := c.post("/api/auth/revoke-session", map[string]any{"id": victimSession})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(core.KindForbidden), errorCode(t, w))
	assert.NotNil(t, v.currentSession())
}

func TestRevokeOtherSessions(t *testing.T) {
	app := newTestApp(t)
	account := app.createAccount(t, models.RoleUser)
	first := app.newClient(t)
	first.signIn(account.Email)
	second := app.newClient(t)
	second.signIn(account.Email)
	c := app.newClient(t)
	c.signIn(account.Email)

	w := c.post("/api/auth/revoke-other-sessions", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Revoked int `json:"revoked"`
	}
	decode(t, w).into(t, &out)
	assert.Equal(t, 2, out.Revoked)
	assert.Nil(t, first.currentSession())
	assert.Nil(t, second.currentSession())
	assert.Len(t, listSessions(t, c), 1)
}
