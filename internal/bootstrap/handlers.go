package bootstrap

import (
	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/handlers"
	"github.com/go-authgate/accountgate/internal/services"
)

// handlerSet holds all HTTP handlers and the services middleware needs
type handlerSet struct {
	auth      *handlers.AuthHandler
	oauth     *handlers.OAuthHandler
	session   *handlers.SessionHandler
	identity  *handlers.IdentityHandler
	twoFactor *handlers.TwoFactorHandler
	passkey   *handlers.PasskeyHandler
	admin     *handlers.AdminHandler

	sessions    *services.SessionService
	permissions *services.AdminService
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	svc serviceSet,
	auditService *services.AuditService,
	oauthProviders map[string]*auth.OAuthProvider,
	recorder core.Recorder,
) handlerSet {
	authHandler := handlers.NewAuthHandler(svc.accounts, svc.sessions, cfg.BaseURL)
	return handlerSet{
		auth: authHandler,
		oauth: handlers.NewOAuthHandler(
			oauthProviders,
			svc.accounts,
			svc.identities,
			cfg.BaseURL,
			recorder,
		),
		session:     handlers.NewSessionHandler(svc.sessions),
		identity:    handlers.NewIdentityHandler(svc.identities),
		twoFactor:   handlers.NewTwoFactorHandler(svc.twoFactor, svc.accounts, authHandler),
		passkey:     handlers.NewPasskeyHandler(svc.passkeys, authHandler),
		admin:       handlers.NewAdminHandler(svc.admin, svc.impersonation, auditService),
		sessions:    svc.sessions,
		permissions: svc.admin,
	}
}
