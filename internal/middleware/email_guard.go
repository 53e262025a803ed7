package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/go-authgate/accountgate/internal/core"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Email rejection reasons
const (
	EmailRejectInvalid    = "invalid_format"
	EmailRejectDisposable = "disposable"
	EmailRejectNoMX       = "no_mx"
)

const maxScreenedBody = 64 << 10

// MXResolver looks up mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// EmailScreenConfig configures the sign-up and sign-in email screen
type EmailScreenConfig struct {
	DisposableDomains []string
	CheckMX           bool
	LookupTimeout     time.Duration
	Resolver          MXResolver    // Defaults to net.DefaultResolver
	Metrics           core.Recorder // Optional
}

// EmailScreen rejects requests whose JSON body carries an email address that
// is malformed, belongs to a disposable provider, or has a domain without
// mail exchangers. The body is restored for the handler.
func EmailScreen(cfg EmailScreenConfig) gin.HandlerFunc {
	disposable := make(map[string]struct{}, len(cfg.DisposableDomains))
	for _, d := range cfg.DisposableDomains {
		disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	reject := func(c *gin.Context, reason, message string) {
		if cfg.Metrics != nil {
			cfg.Metrics.RecordEmailRejected(reason)
		}
		RespondError(c, core.Errorf(core.KindEmailRejected, "%s", message))
	}

	return func(c *gin.Context) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxScreenedBody))
		if err != nil {
			RespondError(c, core.Errorf(core.KindInvalidRequest, "unreadable request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		var body struct {
			Email string `json:"email"`
		}
		// Malformed bodies are left for the handler to reject
		if json.Unmarshal(raw, &body) != nil {
			c.Next()
			return
		}
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if err := validation.Validate(email, validation.Required, is.Email); err != nil {
			reject(c, EmailRejectInvalid, "invalid email address")
			return
		}

		domain := email[strings.LastIndex(email, "@")+1:]
		if isDisposable(disposable, domain) {
			reject(c, EmailRejectDisposable, "disposable email addresses are not allowed")
			return
		}

		if cfg.CheckMX {
			ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
			records, err := resolver.LookupMX(ctx, domain)
			cancel()
			var dnsErr *net.DNSError
			switch {
			case err == nil && len(records) == 0:
				reject(c, EmailRejectNoMX, "email domain does not accept mail")
				return
			case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
				reject(c, EmailRejectNoMX, "email domain does not accept mail")
				return
			case err != nil:
				// Resolver trouble is not the client's fault
				log.Printf("[EmailScreen] MX lookup for %s failed: %v", domain, err)
			}
		}

		c.Next()
	}
}

// isDisposable matches the domain and any of its parents
func isDisposable(list map[string]struct{}, domain string) bool {
	for d := domain; d != ""; {
		if _, ok := list[d]; ok {
			return true
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return false
}
