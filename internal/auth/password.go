package auth

import (
	"errors"

	"github.com/go-authgate/accountgate/internal/core"

	"golang.org/x/crypto/bcrypt"
)

var _ core.PasswordVerifier = (*BcryptHasher)(nil)

// BcryptHasher hashes and verifies passwords with bcrypt. The same instance
// serves sign-in and every password re-entry.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher; cost <= 0 uses bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify returns core.ErrInvalidCredentials on mismatch
func (h *BcryptHasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Internal("failed to verify password", err)
	}
	return nil
}
