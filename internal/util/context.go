package util

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const (
	ipKey ctxKey = iota
	userAgentKey
	actorKey
)

// RequestInfoMiddleware copies the client IP and User-Agent into the request
// context so services can audit without depending on gin.
func RequestInfoMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithRequestInfo(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WithRequestInfo stores the client IP and User-Agent in ctx.
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ipKey, ip)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// WithActor records the authenticated account (and impersonating admin, if any).
func WithActor(ctx context.Context, accountID, impersonatorID string) context.Context {
	return context.WithValue(ctx, actorKey, [2]string{accountID, impersonatorID})
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.ClientIP()
	}
	ip, _ := ctx.Value(ipKey).(string)
	return ip
}

// GetUserAgentFromContext extracts the client User-Agent from the context
func GetUserAgentFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.Request.UserAgent()
	}
	ua, _ := ctx.Value(userAgentKey).(string)
	return ua
}

// GetActorFromContext returns the authenticated account id and the impersonating
// admin id. Both are empty for anonymous requests.
func GetActorFromContext(ctx context.Context) (accountID, impersonatorID string) {
	actor, _ := ctx.Value(actorKey).([2]string)
	return actor[0], actor[1]
}
