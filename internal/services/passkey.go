package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/store"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// PasskeyInput is a verified WebAuthn registration
type PasskeyInput struct {
	Name         string
	CredentialID string
	PublicKey    string
	Counter      uint32
	DeviceType   string
	BackedUp     bool
	Transports   []string
}

// PasskeyService keeps the registered passkeys of each account
type PasskeyService struct {
	store    *store.Store
	sessions *SessionService
	audit    *AuditService
	metrics  core.Recorder
	now      func() time.Time
}

func NewPasskeyService(
	s *store.Store,
	sessions *SessionService,
	audit *AuditService,
	m core.Recorder,
) *PasskeyService {
	return &PasskeyService{store: s, sessions: sessions, audit: audit, metrics: m, now: utcNow}
}

// AddPasskey registers a credential for the account
func (s *PasskeyService) AddPasskey(
	ctx context.Context,
	accountID string,
	in PasskeyInput,
) (*models.Passkey, error) {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.CredentialID, validation.Required, validation.Length(1, 1024)),
		validation.Field(&in.PublicKey, validation.Required),
		validation.Field(&in.Name, validation.Length(0, 100)),
	)
	if err != nil {
		return nil, invalid(err)
	}

	passkey := &models.Passkey{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Name:         strings.TrimSpace(in.Name),
		CredentialID: in.CredentialID,
		PublicKey:    in.PublicKey,
		Counter:      in.Counter,
		DeviceType:   in.DeviceType,
		BackedUp:     in.BackedUp,
		Transports:   strings.Join(in.Transports, ","),
		CreatedAt:    s.now(),
	}
	err = s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		if err := tx.CreatePasskey(passkey); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return core.Errorf(core.KindForbidden, "this passkey is already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, notFoundAs("add passkey", err, core.ErrNotFound)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventPasskeyAdded,
		ActorAccountID: accountID,
		ResourceType:   models.ResourcePasskey,
		ResourceID:     passkey.ID,
		Action:         "Added passkey",
		Details:        models.AuditDetails{"credential_id": passkey.CredentialID},
		Success:        true,
	})
	return passkey, nil
}

// ListPasskeys returns the account's passkeys, newest first
func (s *PasskeyService) ListPasskeys(_ context.Context, accountID string) ([]models.Passkey, error) {
	passkeys, err := s.store.ListPasskeys(accountID)
	if err != nil {
		return nil, wrapErr("list passkeys", err)
	}
	return passkeys, nil
}

// DeletePasskey removes one of the account's passkeys. A passkey owned by
// someone else is reported as NOT_FOUND.
func (s *PasskeyService) DeletePasskey(ctx context.Context, accountID, passkeyID string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		passkey, err := tx.GetPasskey(passkeyID)
		if err != nil {
			return notFoundAs("get passkey", err, core.ErrNotFound)
		}
		if passkey.AccountID != accountID {
			return core.ErrNotFound
		}
		return tx.DeletePasskey(passkey.ID)
	})
	if err != nil {
		return notFoundAs("delete passkey", err, core.ErrNotFound)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventPasskeyDeleted,
		ActorAccountID: accountID,
		ResourceType:   models.ResourcePasskey,
		ResourceID:     passkeyID,
		Action:         "Deleted passkey",
		Success:        true,
	})
	return nil
}

// SignInPasskey issues a session after a verified assertion. The signature
// counter must grow, except for authenticators that always report zero.
func (s *PasskeyService) SignInPasskey(
	ctx context.Context,
	credentialID string,
	counter uint32,
	meta SessionMeta,
) (*SignInResult, error) {
	start := time.Now()
	result, err := s.signIn(ctx, credentialID, counter, meta)
	s.metrics.RecordAuthAttempt("passkey", err == nil, time.Since(start))
	s.metrics.RecordLogin("passkey", err == nil)
	return result, err
}

func (s *PasskeyService) signIn(
	ctx context.Context,
	credentialID string,
	counter uint32,
	meta SessionMeta,
) (*SignInResult, error) {
	passkey, err := s.store.GetPasskeyByCredentialID(credentialID)
	if err != nil {
		return nil, notFoundAs("get passkey", err, core.ErrInvalidCredentials)
	}

	var (
		account *models.Account
		issued  *IssuedSession
	)
	err = s.store.WithAccountLock(ctx, passkey.AccountID, func(tx *store.Store, locked *models.Account) error {
		current, err := tx.GetPasskey(passkey.ID)
		if err != nil {
			return notFoundAs("get passkey", err, core.ErrInvalidCredentials)
		}
		if (counter != 0 || current.Counter != 0) && counter <= current.Counter {
			return core.Errorf(core.KindInvalidCredentials, "passkey signature counter did not increase")
		}
		issued, err = s.sessions.issue(tx, locked, meta, issueOptions{})
		if err != nil {
			return err
		}
		account = locked
		return tx.UpdatePasskeyCounter(current.ID, counter)
	})
	if err != nil {
		return nil, notFoundAs("passkey sign-in", err, core.ErrInvalidCredentials)
	}

	s.sessions.created(issued)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventPasskeyAuthentication,
		ActorAccountID: account.ID,
		ResourceType:   models.ResourceSession,
		ResourceID:     issued.Session.ID,
		Action:         "Signed in with passkey",
		Success:        true,
	})
	return &SignInResult{Account: account, Session: issued}, nil
}
