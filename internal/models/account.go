package models

import (
	"time"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is the system-of-record user. It exists independently of any
// credential; sign-in methods hang off it as IdentityLinks.
type Account struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"                json:"id"`
	Email         string `gorm:"uniqueIndex;not null"                       json:"email"` // stored lower-cased
	EmailVerified bool   `gorm:"not null;default:false"                     json:"emailVerified"`
	Name          string `gorm:"uniqueIndex;not null"                       json:"name"`
	Image         string `                                                  json:"image,omitempty"`
	Role          string `gorm:"type:varchar(20);not null;default:'user'"   json:"role"`

	Banned     bool       `gorm:"not null;default:false" json:"banned"`
	BanReason  string     `                              json:"banReason,omitempty"`
	BanExpires *time.Time `                              json:"banExpires,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name used by Account
func (Account) TableName() string {
	return "accounts"
}

// IsAdmin returns true if the account has the admin role
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsBanned reports whether the ban is in force at now. A ban with an
// elapsed expiry no longer blocks sign-in.
func (a *Account) IsBanned(now time.Time) bool {
	if !a.Banned {
		return false
	}
	if a.BanExpires != nil && !now.Before(*a.BanExpires) {
		return false
	}
	return true
}
