package metrics

import (
	"time"

	"github.com/go-authgate/accountgate/internal/core"
)

// NoopMetrics is a no-operation implementation of core.Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

var _ core.Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() core.Recorder {
	return &NoopMetrics{}
}

// Authentication - noop implementations
func (n *NoopMetrics) RecordSignUp(success bool)                                      {}
func (n *NoopMetrics) RecordAuthAttempt(method string, success bool, d time.Duration) {}
func (n *NoopMetrics) RecordLogin(method string, success bool)                        {}
func (n *NoopMetrics) RecordLogout(sessionDuration time.Duration)                     {}
func (n *NoopMetrics) RecordOAuthCallback(provider string, success bool)              {}

// Session Management - noop implementations
func (n *NoopMetrics) RecordSessionCreated()                             {}
func (n *NoopMetrics) RecordSessionInvalidated(reason string, count int) {}

// Account security - noop implementations
func (n *NoopMetrics) RecordTwoFactorEvent(event string, success bool) {}
func (n *NoopMetrics) RecordImpersonation(action string)               {}
func (n *NoopMetrics) RecordAdminAction(action string, success bool)   {}
func (n *NoopMetrics) RecordEmailSent(kind string, success bool)       {}
func (n *NoopMetrics) RecordRateLimited(route string)                  {}
func (n *NoopMetrics) RecordEmailRejected(reason string)               {}

// Gauge Setters - noop implementations
func (n *NoopMetrics) SetActiveSessionsCount(count int)   {}
func (n *NoopMetrics) SetAccountsCount(total, banned int) {}

// Database Operations - noop implementations
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
