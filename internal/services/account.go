package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/store"
	"github.com/go-authgate/accountgate/internal/util"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

const maxPasswordLength = 128

// Display name bounds. Sign-up is stricter than a later profile edit.
const (
	minSignUpNameLength  = 6
	minProfileNameLength = 2
	maxNameLength        = 50
)

// AccountConfig holds the account flow policy
type AccountConfig struct {
	BaseURL                  string
	RequireEmailVerification bool
	MinPasswordLength        int
	ResetTokenTTL            time.Duration
	// Accounts without a password may delete themselves only from a
	// session younger than this
	FreshSessionAge time.Duration
}

// SignUpInput is the email sign-up request
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Image    string
}

// SignInResult is the outcome of a first-factor sign-in. Exactly one of
// Session and TwoFactorRequired is set.
type SignInResult struct {
	Account           *models.Account
	Session           *IssuedSession
	TwoFactorRequired bool
}

// AccountService implements the account lifecycle flows on top of the
// session, identity and two-factor services.
type AccountService struct {
	store      *store.Store
	passwords  core.PasswordVerifier
	sessions   *SessionService
	identities *IdentityService
	twoFactor  *TwoFactorService
	verifier   *auth.VerificationSigner
	mailer     core.Mailer
	audit      *AuditService
	metrics    core.Recorder
	cfg        AccountConfig
	now        func() time.Time
}

func NewAccountService(
	s *store.Store,
	passwords core.PasswordVerifier,
	sessions *SessionService,
	identities *IdentityService,
	twoFactor *TwoFactorService,
	verifier *auth.VerificationSigner,
	mailer core.Mailer,
	audit *AuditService,
	m core.Recorder,
	cfg AccountConfig,
) *AccountService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	if cfg.FreshSessionAge <= 0 {
		cfg.FreshSessionAge = 24 * time.Hour
	}
	return &AccountService{
		store:      s,
		passwords:  passwords,
		sessions:   sessions,
		identities: identities,
		twoFactor:  twoFactor,
		verifier:   verifier,
		mailer:     mailer,
		audit:      audit,
		metrics:    m,
		cfg:        cfg,
		now:        utcNow,
	}
}

// invalid converts an ozzo-validation error into INVALID_REQUEST
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return core.Errorf(core.KindInvalidRequest, "%s", err.Error())
}

func (s *AccountService) passwordRule() validation.Rule {
	return validation.Length(s.cfg.MinPasswordLength, maxPasswordLength)
}

func (s *AccountService) validatePassword(password string) error {
	return invalid(validation.Validate(password, validation.Required, s.passwordRule()))
}

func nameRules(minLength int) []validation.Rule {
	return []validation.Rule{validation.Required, validation.Length(minLength, maxNameLength)}
}

func validateName(name string, minLength int) error {
	return invalid(validation.Validate(name, nameRules(minLength)...))
}

// SignUpEmail creates an account with a password credential. With email
// verification required no session is issued; a verification email is
// sent instead.
func (s *AccountService) SignUpEmail(
	ctx context.Context,
	in SignUpInput,
	meta SessionMeta,
) (*SignInResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, nameRules(minSignUpNameLength)...),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, s.passwordRule()),
		validation.Field(&in.Image, is.URL),
	)
	if err != nil {
		s.metrics.RecordSignUp(false)
		return nil, invalid(err)
	}

	if _, err := s.store.GetAccountByEmail(in.Email); err == nil {
		s.metrics.RecordSignUp(false)
		return nil, core.Errorf(core.KindUserAlreadyExists, "an account with this email already exists")
	}
	if _, err := s.store.GetAccountByName(in.Name); err == nil {
		s.metrics.RecordSignUp(false)
		return nil, core.Errorf(core.KindUserAlreadyExists, "this name is already taken")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, core.Internal("failed to hash password", err)
	}

	now := s.now()
	account := &models.Account{
		ID:            uuid.New().String(),
		Email:         in.Email,
		EmailVerified: false,
		Name:          in.Name,
		Image:         in.Image,
		Role:          models.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	link := &models.IdentityLink{
		ID:                uuid.New().String(),
		AccountID:         account.ID,
		ProviderID:        models.ProviderCredential,
		ExternalAccountID: account.ID,
		PasswordHash:      hash,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateAccountWithIdentity(account, link); err != nil {
		s.metrics.RecordSignUp(false)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, core.Errorf(core.KindUserAlreadyExists, "an account with this email or name already exists")
		}
		return nil, core.Internal("failed to create account", err)
	}

	s.metrics.RecordSignUp(true)
	log.Printf("[Account] signed up account=%s", account.ID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventSignUp,
		ActorAccountID: account.ID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     account.ID,
		Action:         "Signed up with email",
		Success:        true,
	})

	if s.cfg.RequireEmailVerification {
		if err := s.sendVerification(ctx, account); err != nil {
			return nil, err
		}
		return &SignInResult{Account: account}, nil
	}

	issued, err := s.sessions.CreateSession(ctx, account.ID, meta)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Account: account, Session: issued}, nil
}

// SignInEmail checks the password and either issues a session or, when the
// account has two-factor enabled, asks for the second factor.
func (s *AccountService) SignInEmail(
	ctx context.Context,
	email, password string,
	meta SessionMeta,
) (*SignInResult, error) {
	start := time.Now()
	result, err := s.signInEmail(ctx, normalizeEmail(email), password, meta)
	s.metrics.RecordAuthAttempt("password", err == nil, time.Since(start))
	s.metrics.RecordLogin("password", err == nil)
	if err != nil {
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventAuthenticationFailure,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceAccount,
			Action:       "Password sign-in failed",
			Details:      models.AuditDetails{"email": normalizeEmail(email)},
			Success:      false,
			ErrorMessage: string(core.KindOf(err)),
		})
	}
	return result, err
}

func (s *AccountService) signInEmail(
	ctx context.Context,
	email, password string,
	meta SessionMeta,
) (*SignInResult, error) {
	if email == "" || password == "" {
		return nil, core.ErrInvalidCredentials
	}
	account, err := s.store.GetAccountByEmail(email)
	if err != nil {
		return nil, notFoundAs("get account", err, core.ErrInvalidCredentials)
	}
	link, err := s.store.GetIdentityLink(account.ID, models.ProviderCredential)
	if err != nil {
		return nil, notFoundAs("get credential", err, core.ErrInvalidCredentials)
	}
	if err := s.passwords.Verify(link.PasswordHash, password); err != nil {
		return nil, err
	}
	if account.IsBanned(s.now()) {
		return nil, core.ErrAccountBanned
	}
	if s.cfg.RequireEmailVerification && !account.EmailVerified {
		if err := s.sendVerification(ctx, account); err != nil {
			log.Printf("[Account] failed to resend verification to account=%s: %v", account.ID, err)
		}
		return nil, core.ErrEmailNotVerified
	}

	enabled, err := s.twoFactor.IsEnabled(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		return &SignInResult{Account: account, TwoFactorRequired: true}, nil
	}
	return s.startSession(ctx, account, meta, "password")
}

func (s *AccountService) startSession(
	ctx context.Context,
	account *models.Account,
	meta SessionMeta,
	method string,
) (*SignInResult, error) {
	issued, err := s.sessions.CreateSession(ctx, account.ID, meta)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventAuthenticationSuccess,
		ActorAccountID: account.ID,
		ResourceType:   models.ResourceSession,
		ResourceID:     issued.Session.ID,
		Action:         "Signed in with " + method,
		Success:        true,
	})
	return &SignInResult{Account: account, Session: issued}, nil
}

// CompleteTwoFactorSignIn finishes a sign-in that returned
// TwoFactorRequired, with either a TOTP code or a backup code.
func (s *AccountService) CompleteTwoFactorSignIn(
	ctx context.Context,
	accountID, code string,
	backupCode bool,
	meta SessionMeta,
) (*SignInResult, error) {
	var err error
	if backupCode {
		err = s.twoFactor.ConsumeBackupCode(ctx, accountID, code)
	} else {
		err = s.twoFactor.VerifyLoginTOTP(ctx, accountID, code)
	}
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccountByID(accountID)
	if err != nil {
		return nil, notFoundAs("get account", err, core.ErrUnauthorized)
	}
	return s.startSession(ctx, account, meta, "two-factor")
}

func (s *AccountService) sendMail(ctx context.Context, mail core.Mail) error {
	err := s.mailer.Send(ctx, mail)
	s.metrics.RecordEmailSent(string(mail.Kind), err == nil)
	if err != nil {
		log.Printf("[Account] failed to send %s email: %v", mail.Kind, err)
		return &core.Error{
			Kind:    core.KindEmailDeliveryFailed,
			Message: "failed to send email, please try again",
			Err:     err,
		}
	}
	return nil
}

func (s *AccountService) sendVerification(ctx context.Context, account *models.Account) error {
	token, err := s.verifier.Sign(account.Email)
	if err != nil {
		return core.Internal("failed to sign verification token", err)
	}
	link := strings.TrimRight(s.cfg.BaseURL, "/") + "/api/auth/verify-email?token=" + url.QueryEscape(token)
	return s.sendMail(ctx, core.Mail{
		To:   account.Email,
		Kind: core.MailVerification,
		Params: map[string]string{
			core.MailParamName: account.Name,
			core.MailParamURL:  link,
		},
	})
}

// SendVerificationEmail (re)sends the verification link. Unknown and
// already verified addresses succeed silently.
func (s *AccountService) SendVerificationEmail(ctx context.Context, email string) error {
	account, err := s.store.GetAccountByEmail(email)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return wrapErr("get account", err)
	}
	if account.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, account)
}

// VerifyEmail marks the address verified and signs the account in. Each
// link works once. A link for an address that is already verified is
// consumed without starting a session.
func (s *AccountService) VerifyEmail(
	ctx context.Context,
	token string,
	meta SessionMeta,
) (*SignInResult, error) {
	verified, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccountByEmail(verified.Email)
	if err != nil {
		return nil, notFoundAs("get account", err, core.ErrInvalidCode)
	}

	alreadyVerified := false
	err = s.store.WithAccountLock(ctx, account.ID, func(tx *store.Store, locked *models.Account) error {
		if err := s.consumeVerificationLink(tx, locked.ID, verified); err != nil {
			return err
		}
		account = locked
		if locked.EmailVerified {
			alreadyVerified = true
			return nil
		}
		locked.EmailVerified = true
		locked.UpdatedAt = s.now()
		return tx.UpdateAccount(locked)
	})
	if err != nil {
		return nil, notFoundAs("verify email", err, core.ErrInvalidCode)
	}
	if alreadyVerified {
		return &SignInResult{Account: account}, nil
	}

	s.sessions.InvalidateAccount(ctx, account.ID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventEmailVerified,
		ActorAccountID: account.ID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     account.ID,
		Action:         "Verified email",
		Success:        true,
	})

	enabled, err := s.twoFactor.IsEnabled(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		return &SignInResult{Account: account, TwoFactorRequired: true}, nil
	}
	return s.startSession(ctx, account, meta, "email verification")
}

// consumeVerificationLink records the link's token ID as used. A second use
// of the same link fails with INVALID_CODE.
func (s *AccountService) consumeVerificationLink(
	tx *store.Store,
	accountID string,
	verified *auth.VerifiedEmail,
) error {
	hash := util.HashToken(verified.TokenID)
	_, err := tx.GetVerificationToken(models.PurposeEmailVerification, hash)
	if err == nil {
		return core.Errorf(core.KindInvalidCode, "verification link already used")
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return err
	}
	now := s.now()
	return tx.CreateVerificationToken(&models.VerificationToken{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Purpose:    models.PurposeEmailVerification,
		TokenHash:  hash,
		ExpiresAt:  verified.ExpiresAt,
		ConsumedAt: &now,
		CreatedAt:  now,
	})
}

// RequestPasswordReset stores a single-use reset token and mails it. Unknown
// addresses succeed silently. If the email cannot be sent the token is kept
// and EMAIL_DELIVERY_FAILED is returned.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	if redirectTo != "" && !util.IsRedirectSafe(redirectTo, s.cfg.BaseURL) {
		return core.Errorf(core.KindInvalidRequest, "invalid redirect URL")
	}
	account, err := s.store.GetAccountByEmail(email)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return wrapErr("get account", err)
	}

	raw, err := util.RandomToken(32)
	if err != nil {
		return core.Internal("failed to generate reset token", err)
	}
	err = s.store.WithAccountLock(ctx, account.ID, func(tx *store.Store, _ *models.Account) error {
		if err := tx.DeleteVerificationTokens(account.ID, models.PurposePasswordReset); err != nil {
			return err
		}
		now := s.now()
		return tx.CreateVerificationToken(&models.VerificationToken{
			ID:        uuid.New().String(),
			AccountID: account.ID,
			Purpose:   models.PurposePasswordReset,
			TokenHash: util.HashToken(raw),
			ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return wrapErr("request password reset", err)
	}

	base := strings.TrimRight(s.cfg.BaseURL, "/")
	target := redirectTo
	switch {
	case target == "":
		target = base + "/auth/reset-password"
	case strings.HasPrefix(target, "/"):
		target = base + target
	}
	return s.sendMail(ctx, core.Mail{
		To:   account.Email,
		Kind: core.MailPasswordReset,
		Params: map[string]string{
			core.MailParamName: account.Name,
			core.MailParamURL:  appendQuery(target, "token", raw),
		},
	})
}

func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}

// ResetPassword consumes a reset token and sets the password, creating the
// credential link for accounts that only had social sign-in. Every session
// of the account is revoked in the same transaction.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	record, err := s.store.GetVerificationToken(models.PurposePasswordReset, util.HashToken(token))
	if err != nil {
		return notFoundAs("get reset token", err, core.Errorf(core.KindInvalidCode, "invalid reset token"))
	}
	if record.ConsumedAt != nil {
		return core.Errorf(core.KindInvalidCode, "reset token already used")
	}
	now := s.now()
	if record.IsExpired(now) {
		return core.Errorf(core.KindTokenExpired, "reset token expired, request a new one")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return core.Internal("failed to hash password", err)
	}

	var revoked []models.Session
	err = s.store.WithAccountLock(ctx, record.AccountID, func(tx *store.Store, _ *models.Account) error {
		if err := tx.ConsumeVerificationToken(record.ID, now); err != nil {
			if errors.Is(err, store.ErrTokenAlreadyConsumed) {
				return core.Errorf(core.KindInvalidCode, "reset token already used")
			}
			return err
		}
		if err := s.setPassword(tx, record.AccountID, hash); err != nil {
			return err
		}
		var err error
		revoked, err = tx.DeleteSessionsByAccount(record.AccountID)
		return err
	})
	if err != nil {
		return notFoundAs("reset password", err, core.Errorf(core.KindInvalidCode, "invalid reset token"))
	}

	s.sessions.evict(ctx, revoked, ReasonPasswordReset)
	log.Printf("[Account] password reset for account=%s (%d sessions revoked)", record.AccountID, len(revoked))
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventPasswordReset,
		Severity:       models.SeverityWarning,
		ActorAccountID: record.AccountID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     record.AccountID,
		Action:         "Reset password",
		Details:        models.AuditDetails{"sessions_revoked": len(revoked)},
		Success:        true,
	})
	return nil
}

// setPassword updates or creates the credential link inside tx
func (s *AccountService) setPassword(tx *store.Store, accountID, hash string) error {
	now := s.now()
	link, err := tx.GetIdentityLink(accountID, models.ProviderCredential)
	if errors.Is(err, store.ErrRecordNotFound) {
		return tx.CreateIdentityLink(&models.IdentityLink{
			ID:                uuid.New().String(),
			AccountID:         accountID,
			ProviderID:        models.ProviderCredential,
			ExternalAccountID: accountID,
			PasswordHash:      hash,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	if err != nil {
		return err
	}
	link.PasswordHash = hash
	link.UpdatedAt = now
	return tx.UpdateIdentityLink(link)
}

// ChangePassword re-verifies the current password, stores the new one and
// revokes every other session of the account.
func (s *AccountService) ChangePassword(
	ctx context.Context,
	currentToken, currentPassword, newPassword string,
) (int, error) {
	if err := s.validatePassword(newPassword); err != nil {
		return 0, err
	}
	current, err := s.sessions.current(ctx, currentToken)
	if err != nil {
		return 0, err
	}
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return 0, core.Internal("failed to hash password", err)
	}

	var revoked []models.Session
	err = s.store.WithAccountLock(ctx, current.AccountID, func(tx *store.Store, _ *models.Account) error {
		link, err := tx.GetIdentityLink(current.AccountID, models.ProviderCredential)
		if err != nil {
			return notFoundAs("get credential", err, core.ErrNoPasswordCredential)
		}
		if err := s.passwords.Verify(link.PasswordHash, currentPassword); err != nil {
			return err
		}
		link.PasswordHash = hash
		link.UpdatedAt = s.now()
		if err := tx.UpdateIdentityLink(link); err != nil {
			return err
		}
		revoked, err = tx.DeleteOtherSessionsCreatedBy(current.AccountID, current.ID, s.now())
		return err
	})
	if err != nil {
		return 0, wrapErr("change password", err)
	}

	s.sessions.evict(ctx, revoked, ReasonPasswordChange)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventPasswordChanged,
		Severity:       models.SeverityWarning,
		ActorAccountID: current.AccountID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     current.AccountID,
		Action:         "Changed password",
		Details:        models.AuditDetails{"sessions_revoked": len(revoked)},
		Success:        true,
	})
	return len(revoked), nil
}

// UpdateUser changes the display name and/or image. nil leaves a field as is.
func (s *AccountService) UpdateUser(
	ctx context.Context,
	accountID string,
	name, image *string,
) (*models.Account, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if err := validateName(trimmed, minProfileNameLength); err != nil {
			return nil, err
		}
		name = &trimmed
	}
	if image != nil && *image != "" {
		if err := invalid(validation.Validate(*image, is.URL)); err != nil {
			return nil, err
		}
	}

	var updated *models.Account
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, account *models.Account) error {
		if name != nil && *name != account.Name {
			if _, err := tx.GetAccountByName(*name); err == nil {
				return core.Errorf(core.KindUserAlreadyExists, "this name is already taken")
			}
			account.Name = *name
		}
		if image != nil {
			account.Image = *image
		}
		account.UpdatedAt = s.now()
		updated = account
		if err := tx.UpdateAccount(account); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return core.Errorf(core.KindUserAlreadyExists, "this name is already taken")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, notFoundAs("update user", err, core.ErrNotFound)
	}
	s.sessions.InvalidateAccount(ctx, accountID)
	return updated, nil
}

// DeleteUser removes the caller's own account. Accounts with a password must
// re-enter it; social-only accounts need a recently created session.
// Impersonation sessions cannot delete the account.
func (s *AccountService) DeleteUser(ctx context.Context, currentToken, password string) error {
	current, err := s.sessions.current(ctx, currentToken)
	if err != nil {
		return err
	}
	if current.IsImpersonation() {
		return core.Errorf(core.KindForbidden, "cannot delete an account while impersonating")
	}

	var revoked []models.Session
	err = s.store.WithAccountLock(ctx, current.AccountID, func(tx *store.Store, _ *models.Account) error {
		link, err := tx.GetIdentityLink(current.AccountID, models.ProviderCredential)
		switch {
		case err == nil:
			if err := s.passwords.Verify(link.PasswordHash, password); err != nil {
				return err
			}
		case errors.Is(err, store.ErrRecordNotFound):
			if s.now().Sub(current.CreatedAt) > s.cfg.FreshSessionAge {
				return core.Errorf(core.KindForbidden, "sign in again to delete your account")
			}
		default:
			return err
		}
		revoked, err = tx.DeleteAccountCascade(current.AccountID)
		return err
	})
	if err != nil {
		return wrapErr("delete user", err)
	}

	s.sessions.evict(ctx, revoked, ReasonAccountDeleted)
	log.Printf("[Account] account=%s deleted itself", current.AccountID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventAccountSelfDeleted,
		Severity:       models.SeverityWarning,
		ActorAccountID: current.AccountID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     current.AccountID,
		Action:         "Deleted own account",
		Success:        true,
	})
	return nil
}

// CheckAvailability reports whether name is free. It is advisory; the
// unique index decides at creation time.
func (s *AccountService) CheckAvailability(_ context.Context, name string) (bool, string, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name, minSignUpNameLength); err != nil {
		return false, fmt.Sprintf("Name must be %d to %d characters!", minSignUpNameLength, maxNameLength), nil
	}
	_, err := s.store.GetAccountByName(name)
	if err == nil {
		return false, "User with name already exist!", nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return false, "", wrapErr("check availability", err)
	}
	return true, "Username is available!", nil
}

// SignInSocial completes an OAuth callback that is not a link request.
// An identity seen before signs its account in. An unseen identity whose
// email belongs to an existing account is linked only when the provider
// asserts the email is verified. Anything else creates a new account.
func (s *AccountService) SignInSocial(
	ctx context.Context,
	providerID string,
	info *auth.OAuthUserInfo,
	tokens *ProviderTokens,
	meta SessionMeta,
) (*SignInResult, error) {
	result, err := s.signInSocial(ctx, providerID, info, tokens, meta)
	s.metrics.RecordLogin("oauth_"+providerID, err == nil)
	return result, err
}

func (s *AccountService) signInSocial(
	ctx context.Context,
	providerID string,
	info *auth.OAuthUserInfo,
	tokens *ProviderTokens,
	meta SessionMeta,
) (*SignInResult, error) {
	if info == nil || info.ProviderUserID == "" || info.Email == "" {
		return nil, core.Errorf(core.KindInvalidRequest, "provider returned no identity")
	}
	email := normalizeEmail(info.Email)

	link, err := s.store.GetIdentityByExternalID(providerID, info.ProviderUserID)
	switch {
	case err == nil:
		if tokens != nil {
			if _, err := s.identities.LinkProvider(ctx, link.AccountID, providerID, info.ProviderUserID, tokens); err != nil {
				return nil, err
			}
		}
		account, err := s.store.GetAccountByID(link.AccountID)
		if err != nil {
			return nil, wrapErr("get account", err)
		}
		return s.startSession(ctx, account, meta, providerID)
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, wrapErr("get identity", err)
	}

	existing, err := s.store.GetAccountByEmail(email)
	switch {
	case err == nil:
		if !info.EmailVerified {
			return nil, core.Errorf(core.KindForbidden,
				"an account with this email exists; sign in and link %s from your profile", providerID)
		}
		if _, err := s.identities.LinkProvider(ctx, existing.ID, providerID, info.ProviderUserID, tokens); err != nil {
			return nil, err
		}
		if !existing.EmailVerified {
			if err := s.markVerified(ctx, existing.ID); err != nil {
				return nil, err
			}
			existing.EmailVerified = true
		}
		return s.startSession(ctx, existing, meta, providerID)
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, wrapErr("get account", err)
	}

	account, err := s.createSocialAccount(ctx, providerID, email, info, tokens)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, account, meta, providerID)
}

func (s *AccountService) markVerified(ctx context.Context, accountID string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, account *models.Account) error {
		account.EmailVerified = true
		account.UpdatedAt = s.now()
		return tx.UpdateAccount(account)
	})
	return wrapErr("mark email verified", err)
}

func (s *AccountService) createSocialAccount(
	ctx context.Context,
	providerID, email string,
	info *auth.OAuthUserInfo,
	tokens *ProviderTokens,
) (*models.Account, error) {
	name, err := s.uniqueName(info.FullName, info.Username, email)
	if err != nil {
		return nil, err
	}
	now := s.now()
	account := &models.Account{
		ID:            uuid.New().String(),
		Email:         email,
		EmailVerified: info.EmailVerified,
		Name:          name,
		Image:         info.AvatarURL,
		Role:          models.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	link := &models.IdentityLink{
		ID:                uuid.New().String(),
		AccountID:         account.ID,
		ProviderID:        providerID,
		ExternalAccountID: info.ProviderUserID,
		ProviderEmail:     email,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if tokens != nil {
		applyTokens(link, tokens)
	}
	if err := s.store.CreateAccountWithIdentity(account, link); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, core.Errorf(core.KindUserAlreadyExists, "account already exists, try signing in again")
		}
		return nil, core.Internal("failed to create account", err)
	}

	s.metrics.RecordSignUp(true)
	log.Printf("[Account] signed up account=%s via %s", account.ID, providerID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventOAuthAuthentication,
		ActorAccountID: account.ID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     account.ID,
		Action:         "Signed up with " + providerID,
		Details:        models.AuditDetails{"provider": providerID},
		Success:        true,
	})
	return account, nil
}

// uniqueName picks the first free display name from the candidates, adding
// a random suffix when all are taken.
func (s *AccountService) uniqueName(candidates ...string) (string, error) {
	base := ""
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if i := strings.IndexByte(c, '@'); i > 0 {
			c = c[:i]
		}
		if c == "" {
			continue
		}
		c = truncate(c, 40)
		if base == "" {
			base = c
		}
		if _, err := s.store.GetAccountByName(c); errors.Is(err, store.ErrRecordNotFound) {
			return c, nil
		}
	}
	if base == "" {
		base = "user"
	}
	for range 5 {
		suffix, err := util.RandomToken(4)
		if err != nil {
			return "", core.Internal("failed to generate name", err)
		}
		name := fmt.Sprintf("%s-%s", base, strings.ToLower(suffix))
		if _, err := s.store.GetAccountByName(name); errors.Is(err, store.ErrRecordNotFound) {
			return name, nil
		}
	}
	return "", core.Errorf(core.KindUserAlreadyExists, "could not pick a free name")
}
