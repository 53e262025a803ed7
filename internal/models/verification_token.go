package models

import (
	"time"
)

// Token purposes
const (
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

// VerificationToken is a stored single-use token delivered by email.
type VerificationToken struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	AccountID  string `gorm:"type:varchar(36);index;not null"`
	Purpose    string `gorm:"type:varchar(30);index;not null"`
	TokenHash  string `gorm:"uniqueIndex;type:varchar(64);not null"`
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// TableName overrides the table name used by VerificationToken
func (VerificationToken) TableName() string {
	return "verification_tokens"
}

// IsExpired checks whether the token has passed its expiry
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
