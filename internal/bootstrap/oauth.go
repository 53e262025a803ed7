package bootstrap

import (
	"log"
	"net/http"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/client"
	"github.com/go-authgate/accountgate/internal/config"
)

const googleJWKSRefresh = time.Hour

// initializeOAuthProviders initializes configured OAuth providers. The Google
// id_token verifier is returned so shutdown can stop its refresh loop.
func initializeOAuthProviders(
	cfg *config.Config,
	httpClient *http.Client,
) (map[string]*auth.OAuthProvider, *auth.IDTokenVerifier) {
	providers := make(map[string]*auth.OAuthProvider)
	var verifier *auth.IDTokenVerifier

	// Google
	switch {
	case !cfg.GoogleOAuthEnabled:
		// Skip Google OAuth
	case cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "":
		log.Printf("Warning: Google OAuth enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		opts := []auth.ProviderOption{auth.WithHTTPClient(httpClient)}
		v, err := auth.NewGoogleIDTokenVerifier(cfg.GoogleClientID, googleJWKSRefresh)
		if err != nil {
			log.Printf("Warning: %v, falling back to the userinfo endpoint", err)
		} else {
			verifier = v
			opts = append(opts, auth.WithIDTokenVerifier(v))
		}
		providers[auth.ProviderGoogle] = auth.NewGoogleProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleOAuthRedirectURL,
			Scopes:       cfg.GoogleOAuthScopes,
		}, opts...)
		log.Printf("Google OAuth configured: redirect=%s", cfg.GoogleOAuthRedirectURL)
	}

	// GitHub
	switch {
	case !cfg.GitHubOAuthEnabled:
		// Skip GitHub OAuth
	case cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "":
		log.Printf("Warning: GitHub OAuth enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		providers[auth.ProviderGitHub] = auth.NewGitHubProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubOAuthRedirectURL,
			Scopes:       cfg.GitHubOAuthScopes,
		}, auth.WithHTTPClient(httpClient))
		log.Printf("GitHub OAuth configured: redirect=%s", cfg.GitHubOAuthRedirectURL)
	}

	return providers, verifier
}

// getProviderNames returns a list of provider names
func getProviderNames(providers map[string]*auth.OAuthProvider) []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// createOAuthHTTPClient creates an HTTP client for OAuth requests with optimized connection pool
func createOAuthHTTPClient(cfg *config.Config) (*http.Client, error) {
	if cfg.OAuthInsecureSkipVerify {
		log.Printf("WARNING: OAuth TLS verification is disabled (OAUTH_INSECURE_SKIP_VERIFY=true)")
	}
	return client.CreateOAuthHTTPClient(cfg.OAuthTimeout, cfg.OAuthInsecureSkipVerify)
}

// logOAuthProvidersStatus logs enabled OAuth providers
func logOAuthProvidersStatus(providers map[string]*auth.OAuthProvider) {
	if len(providers) > 0 {
		log.Printf("OAuth providers enabled: %v", getProviderNames(providers))
	} else {
		log.Printf("No OAuth providers configured, social sign-in disabled")
	}
}
