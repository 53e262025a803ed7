package metrics

import (
	"strconv"
	"time"

	"github.com/go-authgate/accountgate/internal/core"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m core.Recorder) gin.HandlerFunc {
	// If NoopMetrics, return a lightweight middleware that does nothing
	if _, ok := m.(*NoopMetrics); ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	// Type assert to concrete Metrics for Prometheus access
	metrics, ok := m.(*Metrics)
	if !ok {
		// Fallback if unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		// Increment in-flight counter
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics after request completes
		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // Use route pattern, not actual path
		status := strconv.Itoa(c.Writer.Status())

		// Record request count
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()

		// Record request duration
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath converts the actual request path to route pattern
// Returns the route pattern (e.g., "/users/:id") or the path itself if no match
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

func result(success bool, failure string) string {
	if success {
		return resultSuccess
	}
	return failure
}

// RecordSignUp records an email sign-up attempt
func (m *Metrics) RecordSignUp(success bool) {
	m.SignUpsTotal.WithLabelValues(result(success, resultFailure)).Inc()
}

// RecordAuthAttempt records authentication attempt
func (m *Metrics) RecordAuthAttempt(method string, success bool, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(method, result(success, resultFailure)).Inc()
	m.AuthLoginDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordLogin records login attempt
func (m *Metrics) RecordLogin(method string, success bool) {
	m.AuthLoginTotal.WithLabelValues(method, result(success, resultFailure)).Inc()
}

// RecordLogout records sign-out
func (m *Metrics) RecordLogout(sessionDuration time.Duration) {
	m.AuthLogoutTotal.Inc()
	m.SessionDuration.Observe(sessionDuration.Seconds())
}

// RecordOAuthCallback records OAuth callback
func (m *Metrics) RecordOAuthCallback(provider string, success bool) {
	m.AuthOAuthCallbackTotal.WithLabelValues(provider, result(success, resultError)).Inc()
}

// RecordSessionCreated records a newly issued session
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreatedTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionInvalidated records count sessions removed for reason
func (m *Metrics) RecordSessionInvalidated(reason string, count int) {
	if count <= 0 {
		return
	}
	m.SessionsActive.Sub(float64(count))
	m.SessionsInvalidatedTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordTwoFactorEvent records a two-factor lifecycle event
func (m *Metrics) RecordTwoFactorEvent(event string, success bool) {
	m.TwoFactorEventsTotal.WithLabelValues(event, result(success, resultFailure)).Inc()
}

// RecordImpersonation records impersonation start/stop
func (m *Metrics) RecordImpersonation(action string) {
	m.ImpersonationsTotal.WithLabelValues(action).Inc()
}

// RecordAdminAction records an administrative action
func (m *Metrics) RecordAdminAction(action string, success bool) {
	m.AdminActionsTotal.WithLabelValues(action, result(success, resultFailure)).Inc()
}

// RecordEmailSent records a transactional email delivery
func (m *Metrics) RecordEmailSent(kind string, success bool) {
	m.EmailsSentTotal.WithLabelValues(kind, result(success, resultError)).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter
func (m *Metrics) RecordRateLimited(route string) {
	m.RateLimitedTotal.WithLabelValues(normalizePath(route)).Inc()
}

// RecordEmailRejected records an email address rejected by screening
func (m *Metrics) RecordEmailRejected(reason string) {
	m.EmailRejectedTotal.WithLabelValues(reason).Inc()
}

// SetActiveSessionsCount sets the current count of active sessions (for periodic updates)
func (m *Metrics) SetActiveSessionsCount(count int) {
	m.SessionsActive.Set(float64(count))
}

// SetAccountsCount sets the account gauges (for periodic updates)
func (m *Metrics) SetAccountsCount(total, banned int) {
	m.AccountsTotal.Set(float64(total))
	m.AccountsBanned.Set(float64(banned))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
