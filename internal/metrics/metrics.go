package metrics

import (
	"sync"

	"github.com/go-authgate/accountgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements core.Recorder interface at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authentication Metrics
	SignUpsTotal           *prometheus.CounterVec
	AuthAttemptsTotal      *prometheus.CounterVec
	AuthLoginTotal         *prometheus.CounterVec
	AuthLogoutTotal        prometheus.Counter
	AuthOAuthCallbackTotal *prometheus.CounterVec
	AuthLoginDuration      *prometheus.HistogramVec

	// Session Metrics
	SessionsActive           prometheus.Gauge
	SessionsCreatedTotal     prometheus.Counter
	SessionsInvalidatedTotal *prometheus.CounterVec
	SessionDuration          prometheus.Histogram

	// Account Security Metrics
	TwoFactorEventsTotal     *prometheus.CounterVec
	ImpersonationsTotal      *prometheus.CounterVec
	AdminActionsTotal        *prometheus.CounterVec
	EmailsSentTotal          *prometheus.CounterVec
	RateLimitedTotal         *prometheus.CounterVec
	EmailRejectedTotal       *prometheus.CounterVec
	AccountsTotal            prometheus.Gauge
	AccountsBanned           prometheus.Gauge
	DatabaseQueryErrorsTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	m := &Metrics{
		// Authentication Metrics
		SignUpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_sign_ups_total",
				Help: "Total number of email sign-up attempts",
			},
			[]string{"result"}, // success, failure
		),
		AuthAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"method", "result"}, // method: email, passkey, google, github
		),
		AuthLoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Total number of login attempts",
			},
			[]string{"method", "result"},
		),
		AuthLogoutTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logout_total",
				Help: "Total number of sign-outs",
			},
		),
		AuthOAuthCallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_oauth_callback_total",
				Help: "Total number of OAuth callback attempts",
			},
			[]string{"provider", "result"},
		),
		AuthLoginDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_login_duration_seconds",
				Help:    "Time taken to complete login",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		// Session Metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Current number of active sessions",
			},
		),
		SessionsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsInvalidatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessions_invalidated_total",
				Help: "Total number of sessions invalidated",
			},
			[]string{"reason"}, // sign_out, revoke, revoke_others, password_change, ban, admin
		),
		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "session_duration_seconds",
				Help: "Duration of user sessions",
				Buckets: []float64{
					60,
					300,
					1800,
					3600,
					14400,
					86400,
					604800,
				}, // 1m, 5m, 30m, 1h, 4h, 1d, 7d
			},
		),

		// Account Security Metrics
		TwoFactorEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "two_factor_events_total",
				Help: "Total number of two-factor lifecycle events",
			},
			[]string{"event", "result"}, // enable, verify, disable, backup_code, login
		),
		ImpersonationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impersonations_total",
				Help: "Total number of impersonation starts and stops",
			},
			[]string{"action"},
		),
		AdminActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_actions_total",
				Help: "Total number of administrative actions",
			},
			[]string{"action", "result"},
		),
		EmailsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_sent_total",
				Help: "Total number of transactional emails sent",
			},
			[]string{"kind", "result"},
		),
		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		EmailRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "email_rejected_total",
				Help: "Total number of email addresses rejected by screening",
			},
			[]string{"reason"}, // format, disposable, no_mx
		),
		AccountsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "accounts_total",
				Help: "Current number of accounts",
			},
		),
		AccountsBanned: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "accounts_banned",
				Help: "Current number of banned accounts",
			},
		),
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"},
		),

		// HTTP Request Metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
	}

	return m
}
