package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/client"
	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/mailer"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// serviceSet holds every business service the handlers depend on
type serviceSet struct {
	sessions      *services.SessionService
	identities    *services.IdentityService
	twoFactor     *services.TwoFactorService
	admin         *services.AdminService
	impersonation *services.ImpersonationService
	accounts      *services.AccountService
	passkeys      *services.PasskeyService
}

// initializeServices creates all business logic services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	sessionCache core.Cache[services.SessionEntry],
	auditService *services.AuditService,
	recorder core.Recorder,
) (serviceSet, error) {
	mail, err := initializeMailer(cfg)
	if err != nil {
		return serviceSet{}, err
	}

	passwords := auth.NewBcryptHasher(bcrypt.DefaultCost)
	totp := auth.NewTOTP(cfg.TwoFactorIssuer)
	verifier := auth.NewVerificationSigner(
		cfg.VerificationSecret,
		cfg.TwoFactorIssuer,
		cfg.VerificationTokenTTL,
	)

	sessions := services.NewSessionService(
		db,
		sessionCache,
		cfg.SessionCacheTTL,
		cfg.SessionLifetime,
	)
	sessions.Subscribe(services.NewSessionMetricsSubscriber(recorder))

	identities := services.NewIdentityService(db, auditService)
	twoFactor := services.NewTwoFactorService(
		db,
		passwords,
		totp,
		cfg.BackupCodeCount,
		cfg.TwoFactorEnrollmentWindow,
		auditService,
		recorder,
	)
	admin := services.NewAdminService(db, permission.Default(), sessions, auditService, recorder)
	impersonation := services.NewImpersonationService(
		db,
		sessions,
		admin,
		cfg.ImpersonationLifetime,
		auditService,
		recorder,
	)
	accounts := services.NewAccountService(
		db,
		passwords,
		sessions,
		identities,
		twoFactor,
		verifier,
		mail,
		auditService,
		recorder,
		services.AccountConfig{
			BaseURL:                  cfg.BaseURL,
			RequireEmailVerification: cfg.RequireEmailVerification,
			MinPasswordLength:        cfg.MinPasswordLength,
			ResetTokenTTL:            cfg.ResetTokenTTL,
		},
	)
	passkeys := services.NewPasskeyService(db, sessions, auditService, recorder)

	return serviceSet{
		sessions:      sessions,
		identities:    identities,
		twoFactor:     twoFactor,
		admin:         admin,
		impersonation: impersonation,
		accounts:      accounts,
		passkeys:      passkeys,
	}, nil
}

// initializeMailer selects the transactional email transport
func initializeMailer(cfg *config.Config) (core.Mailer, error) {
	switch cfg.MailerMode {
	case config.MailerModeHTTP:
		retryClient, err := client.NewRetryClient(client.RetryConfig{
			AuthMode:           cfg.MailerAuthMode,
			AuthSecret:         cfg.MailerAPIKey,
			AuthHeader:         cfg.MailerAuthHeader,
			Timeout:            cfg.MailerTimeout,
			InsecureSkipVerify: cfg.MailerInsecureSkipVerify,
			MaxRetries:         cfg.MailerMaxRetries,
			RetryDelay:         cfg.MailerRetryDelay,
			MaxRetryDelay:      cfg.MailerMaxRetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mailer HTTP client: %w", err)
		}
		log.Printf("Mailer: http (api=%s, auth=%s)", cfg.MailerAPIURL, cfg.MailerAuthMode)
		return mailer.NewHTTPMailer(retryClient, cfg.MailerAPIURL, cfg.MailerFrom), nil
	default:
		log.Printf("Mailer: log (emails are written to the server log)")
		return mailer.NewLogMailer(), nil
	}
}
