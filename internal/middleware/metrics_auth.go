package middleware

import (
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/util"

	"github.com/gin-gonic/gin"
)

const metricsChallenge = `Bearer realm="Metrics"`

// MetricsAuthMiddleware guards /metrics with METRICS_TOKEN. Scrapers send it
// as a Bearer credential. With no token configured the endpoint is public.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		credential, ok := authorizationBearer(c)
		switch {
		case !ok:
			c.Header("WWW-Authenticate", metricsChallenge)
			RespondError(c, core.Errorf(core.KindUnauthorized, "Bearer token required"))
		case credential == "" || !util.ConstantTimeEqual(credential, token):
			c.Header("WWW-Authenticate", metricsChallenge)
			RespondError(c, core.Errorf(core.KindUnauthorized, "Invalid token"))
		default:
			c.Next()
		}
	}
}
