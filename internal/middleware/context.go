package middleware

import (
	"strings"

	"github.com/go-authgate/accountgate/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Keys of the signed cookie session
const (
	SessionToken             = "token"
	SessionImpersonatorToken = "impersonator_token"
	SessionOAuthState        = "oauth_state"
	SessionOAuthProvider     = "oauth_provider"
	SessionOAuthRedirect     = "oauth_redirect"
	SessionOAuthLinkAccount  = "oauth_link_account"
	SessionTwoFactorAccount  = "two_factor_account"
	SessionTwoFactorExpires  = "two_factor_expires"
)

// Keys of the gin context
const (
	ctxAccount = "account"
	ctxSession = "session"
	ctxToken   = "session_token"
)

// ImpersonatedByHeader tells clients that the response was produced for an
// impersonation session
const ImpersonatedByHeader = "X-Impersonated-By"

// BearerToken returns the session token carried by the request. The
// Authorization header wins over the cookie session.
func BearerToken(c *gin.Context) string {
	if token, ok := authorizationBearer(c); ok {
		return token
	}
	if token, ok := sessions.Default(c).Get(SessionToken).(string); ok {
		return token
	}
	return ""
}

// authorizationBearer reports whether the request uses the Bearer scheme and
// returns the credential, which may be empty
func authorizationBearer(c *gin.Context) (string, bool) {
	scheme, credential, _ := strings.Cut(c.GetHeader("Authorization"), " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(credential), true
}

// CurrentAccount returns the account resolved by RequireAuth
func CurrentAccount(c *gin.Context) *models.Account {
	if v, ok := c.Get(ctxAccount); ok {
		if account, ok := v.(*models.Account); ok {
			return account
		}
	}
	return nil
}

// CurrentSession returns the session resolved by RequireAuth
func CurrentSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(ctxSession); ok {
		if session, ok := v.(*models.Session); ok {
			return session
		}
	}
	return nil
}

// CurrentToken returns the raw token RequireAuth authenticated
func CurrentToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}
