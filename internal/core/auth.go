package core

import "context"

// PasswordVerifier checks a password against a stored hash. Sign-in and
// every password re-entry (2FA enable/disable, account deletion) share the
// same implementation.
type PasswordVerifier interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// MailKind names the email template to render
type MailKind string

const (
	MailVerification  MailKind = "verification"
	MailPasswordReset MailKind = "password_reset"
)

// Mail parameters understood by every template
const (
	MailParamName = "name"
	MailParamURL  = "url"
)

// Mail is an outbound message request
type Mail struct {
	To     string
	Kind   MailKind
	Params map[string]string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
