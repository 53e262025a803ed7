package models

import (
	"time"
)

// TwoFactorState is the enrollment state of an account's TOTP credential
type TwoFactorState string

const (
	TwoFactorDisabled          TwoFactorState = "DISABLED"
	TwoFactorPendingEnrollment TwoFactorState = "PENDING_ENROLLMENT"
	TwoFactorEnabled           TwoFactorState = "ENABLED"
)

// TwoFactorCredential holds the TOTP secret of an account. PendingSecret is
// only populated between enable and a successful enrollment verification.
type TwoFactorCredential struct {
	AccountID        string         `gorm:"primaryKey;type:varchar(36)"`
	State            TwoFactorState `gorm:"type:varchar(30);not null;default:'DISABLED'"`
	Enabled          bool           `gorm:"not null;default:false"`
	Secret           string         `gorm:"type:varchar(128)"`
	PendingSecret    string         `gorm:"type:varchar(128)"`
	PendingExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name used by TwoFactorCredential
func (TwoFactorCredential) TableName() string {
	return "two_factor_credentials"
}

// BackupCode is a single-use recovery code. Consuming it deletes the row.
type BackupCode struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	AccountID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_backup_account_hash,priority:1"`
	CodeHash  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_backup_account_hash,priority:2"`
	CreatedAt time.Time
}

// TableName overrides the table name used by BackupCode
func (BackupCode) TableName() string {
	return "backup_codes"
}
