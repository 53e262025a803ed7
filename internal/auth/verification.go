package auth

import (
	"errors"
	"time"

	"github.com/go-authgate/accountgate/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const purposeEmailVerification = "email_verification"

type verificationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// VerificationSigner issues email verification tokens. Each token carries a
// unique ID so the caller can record its use and refuse a replay.
type VerificationSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewVerificationSigner(secret, issuer string, ttl time.Duration) *VerificationSigner {
	return &VerificationSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token proving control of email
func (s *VerificationSigner) Sign(email string) (string, error) {
	now := s.now()
	claims := verificationClaims{
		Email:   email,
		Purpose: purposeEmailVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifiedEmail is the content of a valid verification token
type VerifiedEmail struct {
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Verify returns the claims carried by the token. Expired tokens yield
// core.ErrTokenExpired, anything else core.ErrInvalidCode.
func (s *VerificationSigner) Verify(token string) (*VerifiedEmail, error) {
	var claims verificationClaims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, core.Errorf(core.KindTokenExpired, "verification link expired")
	}
	if err != nil || claims.Purpose != purposeEmailVerification || claims.Email == "" ||
		claims.ID == "" || claims.ExpiresAt == nil {
		return nil, core.Errorf(core.KindInvalidCode, "invalid verification token")
	}
	return &VerifiedEmail{
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
