package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events
	EventSignUp                EventType = "SIGN_UP"
	EventAuthenticationSuccess EventType = "AUTHENTICATION_SUCCESS"
	EventAuthenticationFailure EventType = "AUTHENTICATION_FAILURE"
	EventSignOut               EventType = "SIGN_OUT"
	EventOAuthAuthentication   EventType = "OAUTH_AUTHENTICATION"
	EventPasskeyAuthentication EventType = "PASSKEY_AUTHENTICATION"
	EventEmailVerified         EventType = "EMAIL_VERIFIED"

	// Credential events
	EventIdentityLinked     EventType = "IDENTITY_LINKED"
	EventIdentityUnlinked   EventType = "IDENTITY_UNLINKED"
	EventPasswordReset      EventType = "PASSWORD_RESET"
	EventPasswordChanged    EventType = "PASSWORD_CHANGED"
	EventPasskeyAdded       EventType = "PASSKEY_ADDED"
	EventPasskeyDeleted     EventType = "PASSKEY_DELETED"
	EventTwoFactorEnrolled  EventType = "TWO_FACTOR_ENROLLMENT_STARTED"
	EventTwoFactorEnabled   EventType = "TWO_FACTOR_ENABLED"
	EventTwoFactorDisabled  EventType = "TWO_FACTOR_DISABLED"
	EventBackupCodeConsumed EventType = "BACKUP_CODE_CONSUMED"

	// Session events
	EventSessionRevoked       EventType = "SESSION_REVOKED"
	EventOtherSessionsRevoked EventType = "OTHER_SESSIONS_REVOKED"

	// Admin operations
	EventUserBanned           EventType = "USER_BANNED"
	EventUserUnbanned         EventType = "USER_UNBANNED"
	EventUserRemoved          EventType = "USER_REMOVED"
	EventUserRoleChanged      EventType = "USER_ROLE_CHANGED"
	EventUserSessionsRevoked  EventType = "USER_SESSIONS_REVOKED"
	EventImpersonationStarted EventType = "IMPERSONATION_STARTED"
	EventImpersonationStopped EventType = "IMPERSONATION_STOPPED"
	EventAccountSelfDeleted   EventType = "ACCOUNT_DELETED"
	EventAuthorizationDenied  EventType = "AUTHORIZATION_DENIED"
	EventAuditLogExported     EventType = "AUDIT_LOG_EXPORTED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType represents the type of resource being operated on
type ResourceType string

const (
	ResourceAccount   ResourceType = "ACCOUNT"
	ResourceSession   ResourceType = "SESSION"
	ResourceIdentity  ResourceType = "IDENTITY"
	ResourceTwoFactor ResourceType = "TWO_FACTOR"
	ResourcePasskey   ResourceType = "PASSKEY"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL, which is valid here
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog represents an immutable audit log entry
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	// Who acted. For impersonated requests this is the impersonated account
	// and ImpersonatorID names the admin.
	ActorAccountID string `gorm:"type:varchar(36);index" json:"actor_account_id"`
	ImpersonatorID string `gorm:"type:varchar(36)"       json:"impersonator_id,omitempty"`
	ActorIP        string `gorm:"type:varchar(45);index" json:"actor_ip"`

	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(36);index" json:"resource_id"`

	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	UserAgent string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
