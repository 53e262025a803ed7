package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/store"
	"github.com/go-authgate/accountgate/internal/util"
)

// Enrollment is returned once by Enable. The secret and backup codes are
// never shown again.
type Enrollment struct {
	Secret      string   `json:"secret"`
	TOTPURI     string   `json:"totpURI"`
	BackupCodes []string `json:"backupCodes"`
}

// TwoFactorStatus summarises an account's second factor
type TwoFactorStatus struct {
	State       models.TwoFactorState `json:"state"`
	Enabled     bool                  `json:"enabled"`
	BackupCodes int64                 `json:"backupCodesRemaining"`
}

// TwoFactorService drives DISABLED -> PENDING_ENROLLMENT -> ENABLED -> DISABLED.
// Password re-entry goes through the same PasswordVerifier as sign-in.
type TwoFactorService struct {
	store           *store.Store
	passwords       core.PasswordVerifier
	totp            *auth.TOTP
	backupCodeCount int
	window          time.Duration
	audit           *AuditService
	metrics         core.Recorder
	now             func() time.Time
}

func NewTwoFactorService(
	s *store.Store,
	passwords core.PasswordVerifier,
	totp *auth.TOTP,
	backupCodeCount int,
	enrollmentWindow time.Duration,
	audit *AuditService,
	m core.Recorder,
) *TwoFactorService {
	if backupCodeCount <= 0 {
		backupCodeCount = 10
	}
	return &TwoFactorService{
		store:           s,
		passwords:       passwords,
		totp:            totp,
		backupCodeCount: backupCodeCount,
		window:          enrollmentWindow,
		audit:           audit,
		metrics:         m,
		now:             utcNow,
	}
}

// verifyPassword checks password against the credential link inside tx
func (s *TwoFactorService) verifyPassword(tx *store.Store, accountID, password string) error {
	link, err := tx.GetIdentityLink(accountID, models.ProviderCredential)
	if err != nil {
		return notFoundAs("get credential", err, core.ErrNoPasswordCredential)
	}
	return s.passwords.Verify(link.PasswordHash, password)
}

func hashBackupCodes(codes []string) []string {
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = util.HashToken(auth.NormalizeBackupCode(c))
	}
	return hashes
}

// Enable starts (or restarts) enrollment: a new secret and backup codes are
// generated and the credential moves to PENDING_ENROLLMENT. Two-factor is
// not active until VerifyEnrollment succeeds. An account with two-factor
// already enabled must disable it first.
func (s *TwoFactorService) Enable(
	ctx context.Context,
	accountID, password string,
) (*Enrollment, error) {
	var enrollment *Enrollment
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, account *models.Account) error {
		if err := s.verifyPassword(tx, accountID, password); err != nil {
			return err
		}
		cred, err := tx.GetTwoFactor(accountID)
		if errors.Is(err, store.ErrRecordNotFound) {
			cred = &models.TwoFactorCredential{AccountID: accountID, CreatedAt: s.now()}
		} else if err != nil {
			return err
		}
		if cred.State == models.TwoFactorEnabled {
			return core.Errorf(core.KindInvalidRequest, "two-factor is already enabled")
		}

		secret, uri, err := s.totp.Generate(account.Email)
		if err != nil {
			return core.Internal("failed to generate totp secret", err)
		}
		codes, err := auth.GenerateBackupCodes(s.backupCodeCount)
		if err != nil {
			return core.Internal("failed to generate backup codes", err)
		}

		now := s.now()
		expires := now.Add(s.window)
		cred.State = models.TwoFactorPendingEnrollment
		cred.Enabled = false
		cred.Secret = ""
		cred.PendingSecret = secret
		cred.PendingExpiresAt = &expires
		cred.UpdatedAt = now
		if err := tx.SaveTwoFactor(cred); err != nil {
			return err
		}
		if err := tx.ReplaceBackupCodes(accountID, hashBackupCodes(codes)); err != nil {
			return err
		}

		enrollment = &Enrollment{Secret: secret, TOTPURI: uri, BackupCodes: codes}
		return nil
	})
	if err != nil {
		s.metrics.RecordTwoFactorEvent("enable", false)
		return nil, notFoundAs("enable two-factor", err, core.ErrNotFound)
	}

	s.metrics.RecordTwoFactorEvent("enable", true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventTwoFactorEnrolled,
		ActorAccountID: accountID,
		ResourceType:   models.ResourceTwoFactor,
		ResourceID:     accountID,
		Action:         "Two-factor enrollment started",
		Success:        true,
	})
	return enrollment, nil
}

// VerifyEnrollment confirms the pending secret with a TOTP code. A wrong
// code leaves the enrollment pending so the caller can retry.
func (s *TwoFactorService) VerifyEnrollment(ctx context.Context, accountID, code string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		cred, err := tx.GetTwoFactor(accountID)
		if err != nil {
			return notFoundAs("get two-factor", err, core.Errorf(core.KindInvalidCode, "no enrollment in progress"))
		}
		if cred.State != models.TwoFactorPendingEnrollment || cred.PendingSecret == "" {
			return core.Errorf(core.KindInvalidCode, "no enrollment in progress")
		}

		now := s.now()
		if cred.PendingExpiresAt != nil && !now.Before(*cred.PendingExpiresAt) {
			return core.Errorf(core.KindTokenExpired, "enrollment window elapsed, enable two-factor again")
		}
		if !s.totp.Validate(code, cred.PendingSecret, now) {
			return core.ErrInvalidCode
		}

		cred.State = models.TwoFactorEnabled
		cred.Enabled = true
		cred.Secret = cred.PendingSecret
		cred.PendingSecret = ""
		cred.PendingExpiresAt = nil
		cred.UpdatedAt = now
		return tx.SaveTwoFactor(cred)
	})
	if err != nil {
		s.metrics.RecordTwoFactorEvent("verify_enrollment", false)
		return notFoundAs("verify enrollment", err, core.ErrNotFound)
	}

	s.metrics.RecordTwoFactorEvent("verify_enrollment", true)
	log.Printf("[TwoFactor] enabled for account=%s", accountID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventTwoFactorEnabled,
		ActorAccountID: accountID,
		ResourceType:   models.ResourceTwoFactor,
		ResourceID:     accountID,
		Action:         "Two-factor enabled",
		Success:        true,
	})
	return nil
}

// Disable re-verifies the password and discards the secret and every backup
// code. Disabling an account without two-factor is a no-op.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, password string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		if err := s.verifyPassword(tx, accountID, password); err != nil {
			return err
		}
		return tx.DeleteTwoFactor(accountID)
	})
	if err != nil {
		s.metrics.RecordTwoFactorEvent("disable", false)
		return notFoundAs("disable two-factor", err, core.ErrNotFound)
	}

	s.metrics.RecordTwoFactorEvent("disable", true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventTwoFactorDisabled,
		ActorAccountID: accountID,
		ResourceType:   models.ResourceTwoFactor,
		ResourceID:     accountID,
		Action:         "Two-factor disabled",
		Severity:       models.SeverityWarning,
		Success:        true,
	})
	return nil
}

// enabledCredential loads the credential and requires state ENABLED
func enabledCredential(tx *store.Store, accountID string) (*models.TwoFactorCredential, error) {
	cred, err := tx.GetTwoFactor(accountID)
	if err != nil {
		return nil, notFoundAs("get two-factor", err, core.ErrInvalidCode)
	}
	if cred.State != models.TwoFactorEnabled || !cred.Enabled {
		return nil, core.ErrInvalidCode
	}
	return cred, nil
}

// ConsumeBackupCode accepts each backup code exactly once
func (s *TwoFactorService) ConsumeBackupCode(ctx context.Context, accountID, code string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		if _, err := enabledCredential(tx, accountID); err != nil {
			return err
		}
		hash := util.HashToken(auth.NormalizeBackupCode(code))
		ok, err := tx.ConsumeBackupCode(accountID, hash)
		if err != nil {
			return err
		}
		if !ok {
			return core.Errorf(core.KindInvalidCode, "invalid or already used backup code")
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordTwoFactorEvent("backup_code", false)
		return notFoundAs("consume backup code", err, core.ErrInvalidCode)
	}

	s.metrics.RecordTwoFactorEvent("backup_code", true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventBackupCodeConsumed,
		ActorAccountID: accountID,
		ResourceType:   models.ResourceTwoFactor,
		ResourceID:     accountID,
		Action:         "Backup code used",
		Severity:       models.SeverityWarning,
		Success:        true,
	})
	return nil
}

// VerifyLoginTOTP checks the second factor during sign-in
func (s *TwoFactorService) VerifyLoginTOTP(ctx context.Context, accountID, code string) error {
	cred, err := enabledCredential(s.store, accountID)
	if err == nil && !s.totp.Validate(code, cred.Secret, s.now()) {
		err = core.ErrInvalidCode
	}
	s.metrics.RecordTwoFactorEvent("verify_totp", err == nil)
	return err
}

// RegenerateBackupCodes replaces the remaining codes with a fresh set
func (s *TwoFactorService) RegenerateBackupCodes(
	ctx context.Context,
	accountID, password string,
) ([]string, error) {
	var codes []string
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		if err := s.verifyPassword(tx, accountID, password); err != nil {
			return err
		}
		if _, err := enabledCredential(tx, accountID); err != nil {
			return core.Errorf(core.KindInvalidRequest, "two-factor is not enabled")
		}
		var err error
		codes, err = auth.GenerateBackupCodes(s.backupCodeCount)
		if err != nil {
			return core.Internal("failed to generate backup codes", err)
		}
		return tx.ReplaceBackupCodes(accountID, hashBackupCodes(codes))
	})
	if err != nil {
		return nil, notFoundAs("regenerate backup codes", err, core.ErrNotFound)
	}
	s.metrics.RecordTwoFactorEvent("regenerate_backup_codes", true)
	return codes, nil
}

// IsEnabled reports whether sign-in requires a second factor
func (s *TwoFactorService) IsEnabled(ctx context.Context, accountID string) (bool, error) {
	status, err := s.Status(ctx, accountID)
	if err != nil {
		return false, err
	}
	return status.Enabled, nil
}

// Status returns the account's two-factor state
func (s *TwoFactorService) Status(_ context.Context, accountID string) (*TwoFactorStatus, error) {
	cred, err := s.store.GetTwoFactor(accountID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return &TwoFactorStatus{State: models.TwoFactorDisabled}, nil
	}
	if err != nil {
		return nil, wrapErr("get two-factor", err)
	}
	status := &TwoFactorStatus{State: cred.State, Enabled: cred.Enabled}
	if cred.Enabled {
		if status.BackupCodes, err = s.store.CountBackupCodes(accountID); err != nil {
			return nil, wrapErr("count backup codes", err)
		}
	}
	return status, nil
}
