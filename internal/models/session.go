package models

import (
	"time"
)

// Session is one signed-in browser context. The raw bearer token is never
// stored; TokenHash is its SHA-256.
type Session struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"            json:"id"`
	TokenHash string `gorm:"uniqueIndex;type:varchar(64);not null"  json:"-"`
	AccountID string `gorm:"type:varchar(36);index;not null"        json:"accountId"`
	UserAgent string `gorm:"type:varchar(500)"                      json:"userAgent,omitempty"`
	IPAddress string `gorm:"type:varchar(45)"                       json:"ipAddress,omitempty"`

	// Impersonation overlay
	ImpersonatedBy        string `gorm:"type:varchar(36);index" json:"impersonatedBy,omitempty"`
	ImpersonatorSessionID string `gorm:"type:varchar(36)"       json:"-"`
	Suspended             bool   `gorm:"not null;default:false" json:"suspended,omitempty"`

	CreatedAt time.Time `gorm:"index;not null" json:"createdAt"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name used by Session
func (Session) TableName() string {
	return "sessions"
}

// IsExpired checks whether the session has passed its expiry
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsImpersonation returns true if an admin started this session on behalf
// of the account
func (s *Session) IsImpersonation() bool {
	return s.ImpersonatedBy != ""
}

// IsActive reports whether the session can authenticate a request
func (s *Session) IsActive(now time.Time) bool {
	return !s.Suspended && !s.IsExpired(now)
}
