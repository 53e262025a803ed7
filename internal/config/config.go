package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Session cache type constants
const (
	SessionCacheTypeMemory     = "memory"
	SessionCacheTypeRedisAside = "redis-aside"
)

// Mailer mode constants
const (
	MailerModeLog  = "log"
	MailerModeHTTP = "http"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// Cookie session carrying the bearer token, OAuth state and 2FA challenge
	SessionSecret   string
	SessionMaxAge   int // seconds
	SessionSecure   bool
	CookieName      string
	TrustedOrigins  []string
	EnableCSRFCheck bool

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Account lifecycle
	SessionLifetime           time.Duration
	ImpersonationLifetime     time.Duration
	ResetTokenTTL             time.Duration
	VerificationTokenTTL      time.Duration
	VerificationSecret        string
	RequireEmailVerification  bool
	MinPasswordLength         int
	TwoFactorIssuer           string
	TwoFactorEnrollmentWindow time.Duration
	BackupCodeCount           int

	// Default admin seeded on first start
	DefaultAdminEmail    string
	DefaultAdminPassword string

	// Google OAuth
	GoogleOAuthEnabled     bool
	GoogleClientID         string
	GoogleClientSecret     string
	GoogleOAuthRedirectURL string
	GoogleOAuthScopes      []string

	// GitHub OAuth
	GitHubOAuthEnabled     bool
	GitHubClientID         string
	GitHubClientSecret     string
	GitHubOAuthRedirectURL string
	GitHubOAuthScopes      []string

	// OAuth HTTP Client Settings
	OAuthTimeout            time.Duration
	OAuthInsecureSkipVerify bool

	// Mailer
	MailerMode               string // "log" or "http"
	MailerAPIURL             string
	MailerAPIKey             string
	MailerAuthMode           string // "none", "simple" or "hmac"
	MailerAuthHeader         string
	MailerFrom               string
	MailerTimeout            time.Duration
	MailerInsecureSkipVerify bool
	MailerMaxRetries         int
	MailerRetryDelay         time.Duration
	MailerMaxRetryDelay      time.Duration

	// Rate limiting
	EnableRateLimit       bool
	RateLimitStore        string // "memory" or "redis"
	RateLimitCleanupInt   time.Duration
	SignInRateLimit       int           // requests per SignInRateWindow
	SignInRateWindow      time.Duration // default 10m
	DefaultRateLimit      int           // requests per minute elsewhere
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	EnableEmailScreening  bool
	EnableMXCheck         bool
	MXLookupTimeout       time.Duration
	DisposableDomains     []string
	SessionCacheType      string // "memory" or "redis-aside"
	SessionCacheTTL       time.Duration
	SessionCacheClientTTL time.Duration

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration
	MetricsCacheTTL            time.Duration

	// Audit log
	EnableAuditLogging bool
	AuditLogRetention  time.Duration
	AuditLogBufferSize int
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "accountgate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	return &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		BaseURL:         baseURL,
		SessionSecret:   getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge:   getEnvInt("SESSION_MAX_AGE", 7*24*3600),
		SessionSecure:   getEnvBool("SESSION_SECURE", strings.HasPrefix(baseURL, "https://")),
		CookieName:      getEnv("SESSION_COOKIE_NAME", "accountgate_session"),
		TrustedOrigins:  getEnvSlice("TRUSTED_ORIGINS", []string{baseURL}),
		EnableCSRFCheck: getEnvBool("ENABLE_CSRF_CHECK", true),
		DatabaseDriver:  driver,
		DatabaseDSN:     dsn,

		SessionLifetime:           getEnvDuration("SESSION_LIFETIME", 7*24*time.Hour),
		ImpersonationLifetime:     getEnvDuration("IMPERSONATION_LIFETIME", time.Hour),
		ResetTokenTTL:             getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		VerificationTokenTTL:      getEnvDuration("VERIFICATION_TOKEN_TTL", time.Hour),
		VerificationSecret:        getEnv("VERIFICATION_SECRET", "verification-secret-change-in-production"),
		RequireEmailVerification:  getEnvBool("REQUIRE_EMAIL_VERIFICATION", true),
		MinPasswordLength:         getEnvInt("MIN_PASSWORD_LENGTH", 8),
		TwoFactorIssuer:           getEnv("TWO_FACTOR_ISSUER", "AccountGate"),
		TwoFactorEnrollmentWindow: getEnvDuration("TWO_FACTOR_ENROLLMENT_WINDOW", 10*time.Minute),
		BackupCodeCount:           getEnvInt("BACKUP_CODE_COUNT", 10),

		DefaultAdminEmail:    getEnv("DEFAULT_ADMIN_EMAIL", ""),
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),

		GoogleOAuthEnabled:     getEnvBool("GOOGLE_OAUTH_ENABLED", false),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleOAuthRedirectURL: getEnv("GOOGLE_REDIRECT_URL", baseURL+"/api/auth/callback/google"),
		GoogleOAuthScopes: getEnvSlice(
			"GOOGLE_SCOPES",
			[]string{"openid", "email", "profile"},
		),

		GitHubOAuthEnabled:     getEnvBool("GITHUB_OAUTH_ENABLED", false),
		GitHubClientID:         getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:     getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubOAuthRedirectURL: getEnv("GITHUB_REDIRECT_URL", baseURL+"/api/auth/callback/github"),
		GitHubOAuthScopes:      getEnvSlice("GITHUB_SCOPES", []string{"read:user", "user:email"}),

		OAuthTimeout:            getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify: getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),

		MailerMode:               getEnv("MAILER_MODE", MailerModeLog),
		MailerAPIURL:             getEnv("MAILER_API_URL", ""),
		MailerAPIKey:             getEnv("MAILER_API_KEY", ""),
		MailerAuthMode:           getEnv("MAILER_AUTH_MODE", "simple"),
		MailerAuthHeader:         getEnv("MAILER_AUTH_HEADER", "Authorization"),
		MailerFrom:               getEnv("MAILER_FROM", "AccountGate <no-reply@localhost>"),
		MailerTimeout:            getEnvDuration("MAILER_TIMEOUT", 10*time.Second),
		MailerInsecureSkipVerify: getEnvBool("MAILER_INSECURE_SKIP_VERIFY", false),
		MailerMaxRetries:         getEnvInt("MAILER_MAX_RETRIES", 3),
		MailerRetryDelay:         getEnvDuration("MAILER_RETRY_DELAY", time.Second),
		MailerMaxRetryDelay:      getEnvDuration("MAILER_MAX_RETRY_DELAY", 10*time.Second),

		EnableRateLimit:       getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:        getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInt:   getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		SignInRateLimit:       getEnvInt("SIGN_IN_RATE_LIMIT", 10),
		SignInRateWindow:      getEnvDuration("SIGN_IN_RATE_WINDOW", 10*time.Minute),
		DefaultRateLimit:      getEnvInt("DEFAULT_RATE_LIMIT", 60),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		EnableEmailScreening:  getEnvBool("ENABLE_EMAIL_SCREENING", true),
		EnableMXCheck:         getEnvBool("ENABLE_MX_CHECK", true),
		MXLookupTimeout:       getEnvDuration("MX_LOOKUP_TIMEOUT", 3*time.Second),
		DisposableDomains:     getEnvSlice("DISPOSABLE_DOMAINS", defaultDisposableDomains),
		SessionCacheType:      getEnv("SESSION_CACHE_TYPE", SessionCacheTypeMemory),
		SessionCacheTTL:       getEnvDuration("SESSION_CACHE_TTL", 5*time.Minute),
		SessionCacheClientTTL: getEnvDuration("SESSION_CACHE_CLIENT_TTL", 30*time.Second),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),
		MetricsCacheTTL:            getEnvDuration("METRICS_CACHE_TTL", time.Minute),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
	}
}

var defaultDisposableDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"temp-mail.org",
	"yopmail.com",
	"trashmail.com",
	"sharklasers.com",
	"getnada.com",
	"dispostable.com",
}

// Validate checks enumerated settings and cross-field requirements.
func (c *Config) Validate() error {
	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}
	if c.SessionCacheType != SessionCacheTypeMemory &&
		c.SessionCacheType != SessionCacheTypeRedisAside {
		return fmt.Errorf(
			"invalid SESSION_CACHE_TYPE value: %q (must be %q or %q)",
			c.SessionCacheType, SessionCacheTypeMemory, SessionCacheTypeRedisAside,
		)
	}
	if c.SessionCacheTTL <= 0 {
		return fmt.Errorf("SESSION_CACHE_TTL must be positive, got %s", c.SessionCacheTTL)
	}
	if c.SessionLifetime <= 0 || c.ImpersonationLifetime <= 0 {
		return errors.New("SESSION_LIFETIME and IMPERSONATION_LIFETIME must be positive")
	}
	if c.MinPasswordLength < 8 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 8, got %d", c.MinPasswordLength)
	}
	if c.BackupCodeCount <= 0 {
		return fmt.Errorf("BACKUP_CODE_COUNT must be positive, got %d", c.BackupCodeCount)
	}
	switch c.MailerMode {
	case MailerModeLog:
	case MailerModeHTTP:
		if c.MailerAPIURL == "" {
			return errors.New("MAILER_API_URL is required when MAILER_MODE=http")
		}
	default:
		return fmt.Errorf("invalid MAILER_MODE: %s (must be: log, http)", c.MailerMode)
	}
	if c.GoogleOAuthEnabled && (c.GoogleClientID == "" || c.GoogleClientSecret == "") {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required when Google OAuth is enabled")
	}
	if c.GitHubOAuthEnabled && (c.GitHubClientID == "" || c.GitHubClientSecret == "") {
		return errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required when GitHub OAuth is enabled")
	}
	if (c.DefaultAdminEmail == "") != (c.DefaultAdminPassword == "") {
		return errors.New("DEFAULT_ADMIN_EMAIL and DEFAULT_ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
