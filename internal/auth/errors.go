package auth

import "errors"

var (
	// ErrOAuthNoEmail is returned when the provider reports no usable email
	ErrOAuthNoEmail = errors.New("oauth: provider account has no email address")

	// ErrIDTokenInvalid is returned when a provider ID token fails verification
	ErrIDTokenInvalid = errors.New("oauth: invalid id token")

	// ErrUnsupportedProvider is returned for unknown provider ids
	ErrUnsupportedProvider = errors.New("oauth: unsupported provider")
)
