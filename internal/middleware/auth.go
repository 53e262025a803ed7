package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/util"

	"github.com/gin-gonic/gin"
)

// SessionResolver turns a bearer token into its session and account
type SessionResolver interface {
	GetSession(ctx context.Context, token string) (*models.Session, *models.Account, error)
}

// PermissionChecker is the admin authorization gate
type PermissionChecker interface {
	HasPermission(ctx context.Context, accountID, resource string, actions ...string) bool
}

// LoginPath is where browsers without a session are sent
const LoginPath = "/auth/login"

// RequireAuth is a middleware that requires a valid session
func RequireAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		session, account, err := resolver.GetSession(c.Request.Context(), token)
		if err != nil {
			if core.KindOf(err) != core.KindUnauthorized {
				RespondError(c, err)
				return
			}
			if WantsHTML(c) {
				c.Redirect(http.StatusFound, LoginPath+"?redirect="+url.QueryEscape(c.Request.URL.RequestURI()))
				c.Abort()
				return
			}
			RespondError(c, core.ErrUnauthorized)
			return
		}

		setAuthenticated(c, token, session, account)
		c.Next()
	}
}

// OptionalAuth attaches the session when the request carries a valid one
// and lets anonymous requests through.
func OptionalAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token != "" {
			if session, account, err := resolver.GetSession(c.Request.Context(), token); err == nil {
				setAuthenticated(c, token, session, account)
			}
		}
		c.Next()
	}
}

func setAuthenticated(c *gin.Context, token string, session *models.Session, account *models.Account) {
	c.Set(ctxAccount, account)
	c.Set(ctxSession, session)
	c.Set(ctxToken, token)
	if session.IsImpersonation() {
		c.Header(ImpersonatedByHeader, session.ImpersonatedBy)
	}
	c.Request = c.Request.WithContext(
		util.WithActor(c.Request.Context(), account.ID, session.ImpersonatedBy),
	)
}

// RequirePermission is a middleware that requires the signed-in account to
// hold every action on resource. It must run after RequireAuth.
func RequirePermission(gate PermissionChecker, resource string, actions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := CurrentAccount(c)
		if account != nil && gate.HasPermission(c.Request.Context(), account.ID, resource, actions...) {
			c.Next()
			return
		}
		if WantsHTML(c) {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		RespondError(c, core.Errorf(core.KindForbidden, "missing permission %s", resource))
	}
}
