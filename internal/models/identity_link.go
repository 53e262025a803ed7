package models

import (
	"time"
)

// ProviderCredential is the provider id of the email/password sign-in method.
const ProviderCredential = "credential"

// IdentityLink associates an Account with one sign-in method: the password
// credential or an external OAuth identity.
type IdentityLink struct {
	ID                string `gorm:"primaryKey;type:varchar(36)"                                                                                json:"id"`
	AccountID         string `gorm:"type:varchar(36);not null;uniqueIndex:idx_identity_account_provider,priority:1"                             json:"accountId"`
	ProviderID        string `gorm:"type:varchar(50);not null;uniqueIndex:idx_identity_account_provider,priority:2;uniqueIndex:idx_identity_provider_external,priority:1" json:"providerId"`
	ExternalAccountID string `gorm:"not null;uniqueIndex:idx_identity_provider_external,priority:2"                                             json:"externalAccountId"`

	// Credential rows only
	PasswordHash string `json:"-"`

	// OAuth rows only (snapshot, should be encrypted at rest in production)
	ProviderEmail string    `json:"providerEmail,omitempty"`
	AccessToken   string    `gorm:"type:text" json:"-"`
	RefreshToken  string    `gorm:"type:text" json:"-"`
	TokenExpiry   time.Time `json:"-"`
	Scope         string    `json:"scope,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name used by IdentityLink
func (IdentityLink) TableName() string {
	return "identity_links"
}

// IsCredential returns true for the password sign-in method
func (l *IdentityLink) IsCredential() bool {
	return l.ProviderID == ProviderCredential
}
