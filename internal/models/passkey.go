package models

import (
	"time"
)

// Passkey is a registered WebAuthn credential. The attestation and
// assertion ceremonies are verified before a record reaches the store.
type Passkey struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"       json:"id"`
	AccountID    string `gorm:"type:varchar(36);index;not null"   json:"accountId"`
	Name         string `gorm:"type:varchar(100)"                 json:"name"`
	CredentialID string `gorm:"uniqueIndex;not null"              json:"credentialId"`
	PublicKey    string `gorm:"type:text;not null"                json:"-"`
	Counter      uint32 `gorm:"not null;default:0"                json:"counter"`
	DeviceType   string `gorm:"type:varchar(30)"                  json:"deviceType,omitempty"`
	BackedUp     bool   `gorm:"not null;default:false"            json:"backedUp"`
	Transports   string `gorm:"type:varchar(100)"                 json:"transports,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the table name used by Passkey
func (Passkey) TableName() string {
	return "passkeys"
}
