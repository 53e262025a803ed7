package auth

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP generates and validates RFC 6238 codes: 6 digits, 30 second period,
// SHA1, one step of clock skew either way.
type TOTP struct {
	issuer string
}

func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer}
}

func (t *TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Generate creates a new secret and its otpauth:// provisioning URI
func (t *TOTP) Generate(accountName string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Validate reports whether code is valid for secret at the given instant
func (t *TOTP) Validate(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, t.opts())
	return err == nil && ok
}

// Code returns the code for secret at the given instant
func (t *TOTP) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, t.opts())
}
