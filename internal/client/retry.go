package client

import (
	"fmt"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// RetryConfig describes an authenticated outbound API such as the
// transactional email endpoint
type RetryConfig struct {
	AuthMode           string // httpclient.AuthModeNone, AuthModeSimple, AuthModeHMAC or AuthModeGitHub
	AuthSecret         string
	AuthHeader         string
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxRetries         int
	RetryDelay         time.Duration
	MaxRetryDelay      time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.AuthMode == "" {
		c.AuthMode = httpclient.AuthModeNone
	}
	if c.AuthHeader == "" {
		c.AuthHeader = "Authorization"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = c.RetryDelay
	}
	return c
}

// NewRetryClient signs every request per cfg.AuthMode and retries 5xx and
// network failures with exponential backoff
func NewRetryClient(cfg RetryConfig) (*retry.Client, error) {
	cfg = cfg.withDefaults()
	switch cfg.AuthMode {
	case httpclient.AuthModeNone, httpclient.AuthModeSimple,
		httpclient.AuthModeHMAC, httpclient.AuthModeGitHub:
	default:
		return nil, fmt.Errorf("auth client: unknown auth mode %q", cfg.AuthMode)
	}
	if cfg.AuthMode != httpclient.AuthModeNone && cfg.AuthSecret == "" {
		return nil, fmt.Errorf("auth client (%s): secret is required", cfg.AuthMode)
	}

	authClient := httpclient.NewAuthClient(
		cfg.AuthMode,
		cfg.AuthSecret,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithHeaderName(cfg.AuthHeader),
		httpclient.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
	)

	rc, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(authClient),
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithInitialRetryDelay(cfg.RetryDelay),
		retry.WithMaxRetryDelay(cfg.MaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("retry client: %w", err)
	}
	return rc, nil
}
