package middleware

import (
	"net/http"
	"strings"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	csrfTokenKey    = "csrf_token"
	CSRFHeaderField = "X-CSRF-Token"
)

// CSRFMiddleware protects cookie-authenticated state-changing requests. A
// request passes when its Origin is trusted or it echoes the token handed
// out in the X-CSRF-Token response header. Requests carrying a Bearer token
// are exempt since browsers never attach one on their own.
func CSRFMiddleware(trustedOrigins []string) gin.HandlerFunc {
	trusted := make(map[string]struct{}, len(trustedOrigins))
	for _, o := range trustedOrigins {
		trusted[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		session := sessions.Default(c)

		token, _ := session.Get(csrfTokenKey).(string)
		if token == "" {
			var err error
			token, err = util.RandomToken(32)
			if err != nil {
				RespondError(c, core.Internal("failed to generate CSRF token", err))
				return
			}
			session.Set(csrfTokenKey, token)
			if err := session.Save(); err != nil {
				RespondError(c, core.Internal("failed to save CSRF token", err))
				return
			}
		}
		c.Header(CSRFHeaderField, token)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if _, bearer := authorizationBearer(c); bearer {
			c.Next()
			return
		}
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := trusted[strings.TrimRight(origin, "/")]; ok {
				c.Next()
				return
			}
		}
		if submitted := c.GetHeader(CSRFHeaderField); submitted != "" &&
			util.ConstantTimeEqual(submitted, token) {
			c.Next()
			return
		}

		RespondError(c, core.Errorf(core.KindForbidden, "CSRF validation failed"))
	}
}
