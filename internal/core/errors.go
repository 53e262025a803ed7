package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so every caller can react to it without string
// matching. Kinds are stable wire values.
type Kind string

const (
	KindForbidden                Kind = "FORBIDDEN"
	KindUnauthorized             Kind = "UNAUTHORIZED"
	KindNotFound                 Kind = "NOT_FOUND"
	KindAccountNotFound          Kind = "ACCOUNT_NOT_FOUND"
	KindTargetNotFound           Kind = "TARGET_NOT_FOUND"
	KindAlreadyLinked            Kind = "ALREADY_LINKED"
	KindCannotRemoveLastIdentity Kind = "CANNOT_REMOVE_LAST_IDENTITY"
	KindNoPasswordCredential     Kind = "NO_PASSWORD_CREDENTIAL"
	KindInvalidCode              Kind = "INVALID_CODE"
	KindTokenExpired             Kind = "TOKEN_EXPIRED"
	KindAccountBanned            Kind = "ACCOUNT_BANNED"
	KindNoNestedImpersonation    Kind = "NO_NESTED_IMPERSONATION"
	KindNotImpersonating         Kind = "NOT_IMPERSONATING"
	KindRateLimited              Kind = "RATE_LIMITED"
	KindEmailRejected            Kind = "EMAIL_REJECTED"
	KindInvalidCredentials       Kind = "INVALID_CREDENTIALS"
	KindEmailNotVerified         Kind = "EMAIL_NOT_VERIFIED"
	KindUserAlreadyExists        Kind = "USER_ALREADY_EXISTS"
	KindInvalidRequest           Kind = "INVALID_REQUEST"
	KindEmailDeliveryFailed      Kind = "EMAIL_DELIVERY_FAILED"
	KindInternal                 Kind = "INTERNAL"
)

// Error is the single error type returned by the account services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// holds for every forbidden error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates an error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error of the given kind with a formatted message
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The cause is kept for logging and
// never shown to clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is checks.
var (
	ErrForbidden                = NewError(KindForbidden, "forbidden")
	ErrUnauthorized             = NewError(KindUnauthorized, "authentication required")
	ErrNotFound                 = NewError(KindNotFound, "not found")
	ErrAccountNotFound          = NewError(KindAccountNotFound, "linked account not found")
	ErrTargetNotFound           = NewError(KindTargetNotFound, "target account not found")
	ErrAlreadyLinked            = NewError(KindAlreadyLinked, "provider already linked")
	ErrCannotRemoveLastIdentity = NewError(KindCannotRemoveLastIdentity, "cannot remove the last sign-in method")
	ErrNoPasswordCredential     = NewError(KindNoPasswordCredential, "account has no password")
	ErrInvalidCode              = NewError(KindInvalidCode, "invalid code")
	ErrTokenExpired             = NewError(KindTokenExpired, "token expired")
	ErrAccountBanned            = NewError(KindAccountBanned, "account is banned")
	ErrNoNestedImpersonation    = NewError(KindNoNestedImpersonation, "cannot impersonate from an impersonation session")
	ErrNotImpersonating         = NewError(KindNotImpersonating, "session is not impersonating")
	ErrRateLimited              = NewError(KindRateLimited, "too many requests")
	ErrEmailRejected            = NewError(KindEmailRejected, "email address rejected")
	ErrInvalidCredentials       = NewError(KindInvalidCredentials, "invalid email or password")
	ErrEmailNotVerified         = NewError(KindEmailNotVerified, "email not verified")
	ErrUserAlreadyExists        = NewError(KindUserAlreadyExists, "user already exists")
	ErrInvalidRequest           = NewError(KindInvalidRequest, "invalid request")
	ErrEmailDeliveryFailed      = NewError(KindEmailDeliveryFailed, "failed to send email")
)
