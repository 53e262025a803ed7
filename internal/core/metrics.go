package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authentication
	RecordSignUp(success bool)
	RecordAuthAttempt(method string, success bool, duration time.Duration)
	RecordLogin(method string, success bool)
	RecordLogout(sessionDuration time.Duration)
	RecordOAuthCallback(provider string, success bool)

	// Session Management
	RecordSessionCreated()
	RecordSessionInvalidated(reason string, count int)

	// Two-factor, impersonation and admin actions
	RecordTwoFactorEvent(event string, success bool)
	RecordImpersonation(action string)
	RecordAdminAction(action string, success bool)

	// Outbound email
	RecordEmailSent(kind string, success bool)

	// Policy layer
	RecordRateLimited(route string)
	RecordEmailRejected(reason string)

	// Gauge Setters (for periodic updates)
	SetActiveSessionsCount(count int)
	SetAccountsCount(total, banned int)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by CacheWrapper.
type MetricsStore interface {
	CountActiveSessions() (int64, error)
	CountAccounts() (int64, error)
	CountBannedAccounts() (int64, error)
}
