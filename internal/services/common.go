package services

import (
	"errors"
	"strings"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/store"
)

// utcNow is the default clock. Timestamps are stored in UTC so the SQLite
// driver compares them correctly.
func utcNow() time.Time {
	return time.Now().UTC()
}

// wrapErr passes core errors through unchanged and wraps anything else as
// an internal failure.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.Internal(op, err)
}

// notFoundAs maps a missing row to kind and wraps other store failures.
func notFoundAs(op string, err error, kind *core.Error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return kind
	}
	return wrapErr(op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
