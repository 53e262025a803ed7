package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound is returned by single-row lookups that match nothing
	ErrRecordNotFound = gorm.ErrRecordNotFound

	// ErrDuplicateKey is returned when an insert violates a unique index
	ErrDuplicateKey = gorm.ErrDuplicatedKey

	// ErrTokenAlreadyConsumed is returned by ConsumeVerificationToken when a
	// concurrent request consumed the token first (0 rows updated).
	ErrTokenAlreadyConsumed = errors.New("verification token already consumed")
)
