package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/google/uuid"
)

// LinkStatus is the outcome of a successful LinkProvider call
type LinkStatus string

const (
	LinkCreated       LinkStatus = "LINKED"
	LinkAlreadyLinked LinkStatus = LinkStatus(core.KindAlreadyLinked)
)

// ProviderTokens is the token snapshot kept on OAuth identity links
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	Email        string
}

// IdentityService maintains the sign-in methods linked to an account
type IdentityService struct {
	store *store.Store
	audit *AuditService
	now   func() time.Time
}

func NewIdentityService(s *store.Store, audit *AuditService) *IdentityService {
	return &IdentityService{store: s, audit: audit, now: utcNow}
}

// LinkProvider attaches an external identity to the account. Linking a
// provider the account already has is an idempotent no-op reported as
// LinkAlreadyLinked. An identity owned by another account is forbidden.
func (s *IdentityService) LinkProvider(
	ctx context.Context,
	accountID, providerID, externalAccountID string,
	tokens *ProviderTokens,
) (LinkStatus, error) {
	if providerID == "" || providerID == models.ProviderCredential || externalAccountID == "" {
		return "", core.Errorf(core.KindInvalidRequest, "invalid provider link")
	}

	var status LinkStatus
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		owner, err := tx.GetIdentityByExternalID(providerID, externalAccountID)
		switch {
		case err == nil && owner.AccountID != accountID:
			return core.Errorf(core.KindForbidden, "this %s account is linked to another user", providerID)
		case err != nil && !errors.Is(err, store.ErrRecordNotFound):
			return err
		}

		existing, err := tx.GetIdentityLink(accountID, providerID)
		if err == nil {
			status = LinkAlreadyLinked
			// Refresh the token snapshot of the identity that is linked;
			// a different external account never replaces it.
			if tokens != nil && existing.ExternalAccountID == externalAccountID {
				applyTokens(existing, tokens)
				existing.UpdatedAt = s.now()
				return tx.UpdateIdentityLink(existing)
			}
			return nil
		}
		if !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		link := &models.IdentityLink{
			ID:                uuid.New().String(),
			AccountID:         accountID,
			ProviderID:        providerID,
			ExternalAccountID: externalAccountID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if tokens != nil {
			applyTokens(link, tokens)
		}
		if err := tx.CreateIdentityLink(link); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return core.Errorf(core.KindForbidden, "this %s account is linked to another user", providerID)
			}
			return err
		}
		status = LinkCreated
		return nil
	})
	if err != nil {
		return "", notFoundAs("link provider", err, core.ErrNotFound)
	}

	if status == LinkCreated {
		log.Printf("[Identity] linked provider=%s account=%s", providerID, accountID)
		s.audit.Log(ctx, AuditLogEntry{
			EventType:      models.EventIdentityLinked,
			ActorAccountID: accountID,
			ResourceType:   models.ResourceIdentity,
			ResourceID:     accountID,
			Action:         "Linked " + providerID,
			Details:        models.AuditDetails{"provider": providerID},
			Success:        true,
		})
	}
	return status, nil
}

func applyTokens(link *models.IdentityLink, tokens *ProviderTokens) {
	link.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		link.RefreshToken = tokens.RefreshToken
	}
	link.TokenExpiry = tokens.Expiry
	link.Scope = tokens.Scope
	if tokens.Email != "" {
		link.ProviderEmail = tokens.Email
	}
}

// UnlinkProvider removes a sign-in method. The last remaining method can
// never be removed. Removing the password credential also disables
// two-factor authentication and voids outstanding reset tokens, in the same
// transaction.
func (s *IdentityService) UnlinkProvider(
	ctx context.Context,
	accountID, providerID, externalAccountID string,
) error {
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		link, err := tx.GetIdentityLink(accountID, providerID)
		if err != nil {
			return notFoundAs("get identity", err, core.ErrAccountNotFound)
		}
		if externalAccountID != "" && link.ExternalAccountID != externalAccountID {
			return core.ErrAccountNotFound
		}

		count, err := tx.CountIdentityLinks(accountID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return core.ErrCannotRemoveLastIdentity
		}

		if err := tx.DeleteIdentityLink(link.ID); err != nil {
			return err
		}
		if link.IsCredential() {
			if err := tx.DeleteTwoFactor(accountID); err != nil {
				return err
			}
			if err := tx.DeleteVerificationTokens(accountID, models.PurposePasswordReset); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return notFoundAs("unlink provider", err, core.ErrAccountNotFound)
	}

	log.Printf("[Identity] unlinked provider=%s account=%s", providerID, accountID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventIdentityUnlinked,
		ActorAccountID: accountID,
		ResourceType:   models.ResourceIdentity,
		ResourceID:     accountID,
		Action:         "Unlinked " + providerID,
		Details:        models.AuditDetails{"provider": providerID},
		Success:        true,
	})
	return nil
}

// HasPasswordCredential reports whether the account can sign in with a
// password
func (s *IdentityService) HasPasswordCredential(_ context.Context, accountID string) (bool, error) {
	_, err := s.store.GetIdentityLink(accountID, models.ProviderCredential)
	if errors.Is(err, store.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapErr("get credential", err)
	}
	return true, nil
}

// ListIdentities returns the account's sign-in methods, oldest first
func (s *IdentityService) ListIdentities(
	_ context.Context,
	accountID string,
) ([]models.IdentityLink, error) {
	links, err := s.store.ListIdentityLinks(accountID)
	if err != nil {
		return nil, wrapErr("list identities", err)
	}
	return links, nil
}
