package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Provider ids as stored on IdentityLink rows
const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

// OAuthProviderConfig contains configuration for an OAuth provider
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthUserInfo contains user information from OAuth provider
type OAuthUserInfo struct {
	ProviderUserID string // Provider's user ID
	Username       string // Provider's username
	Email          string // User email (required)
	EmailVerified  bool   // Provider asserts ownership of Email
	FullName       string // User full name
	AvatarURL      string // Avatar URL
}

// OAuthProvider handles OAuth authentication
type OAuthProvider struct {
	config     *oauth2.Config
	provider   string // "github", "google"
	apiBaseURL string
	httpClient *http.Client
	idTokens   *IDTokenVerifier
}

// ProviderOption customises a provider
type ProviderOption func(*OAuthProvider)

// WithHTTPClient sets the client used for token exchange and API calls
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *OAuthProvider) {
		p.httpClient = c
	}
}

// WithAPIBaseURL overrides the user info API base URL
func WithAPIBaseURL(u string) ProviderOption {
	return func(p *OAuthProvider) {
		p.apiBaseURL = strings.TrimRight(u, "/")
	}
}

// WithEndpoint overrides the authorize and token endpoints
func WithEndpoint(e oauth2.Endpoint) ProviderOption {
	return func(p *OAuthProvider) {
		p.config.Endpoint = e
	}
}

// WithIDTokenVerifier makes the provider verify the id_token returned by
// the token endpoint instead of calling the user info API.
func WithIDTokenVerifier(v *IDTokenVerifier) ProviderOption {
	return func(p *OAuthProvider) {
		p.idTokens = v
	}
}

func newProvider(
	name string,
	cfg OAuthProviderConfig,
	endpoint oauth2.Endpoint,
	apiBaseURL string,
	opts []ProviderOption,
) *OAuthProvider {
	p := &OAuthProvider{
		provider:   name,
		apiBaseURL: apiBaseURL,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewGitHubProvider creates a new GitHub OAuth provider
func NewGitHubProvider(cfg OAuthProviderConfig, opts ...ProviderOption) *OAuthProvider {
	return newProvider(ProviderGitHub, cfg, github.Endpoint, "https://api.github.com", opts)
}

// NewGoogleProvider creates a new Google OAuth provider. Identity comes from
// the OpenID Connect id_token when a verifier is configured, otherwise from
// the userinfo endpoint.
func NewGoogleProvider(cfg OAuthProviderConfig, opts ...ProviderOption) *OAuthProvider {
	return newProvider(
		ProviderGoogle,
		cfg,
		google.Endpoint,
		"https://openidconnect.googleapis.com",
		opts,
	)
}

func (p *OAuthProvider) withClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// GetAuthURL returns the OAuth authorization URL
func (p *OAuthProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges authorization code for access token
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(p.withClient(ctx), code)
}

// GetUserInfo retrieves user information from the OAuth provider
func (p *OAuthProvider) GetUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (*OAuthUserInfo, error) {
	switch p.provider {
	case ProviderGitHub:
		return p.getGitHubUserInfo(ctx, token)
	case ProviderGoogle:
		return p.getGoogleUserInfo(ctx, token)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p.provider)
	}
}

// GetProvider returns the provider name
func (p *OAuthProvider) GetProvider() string {
	return p.provider
}

// GetDisplayName returns the human-readable provider name
func (p *OAuthProvider) GetDisplayName() string {
	switch p.provider {
	case ProviderGitHub:
		return "GitHub"
	case ProviderGoogle:
		return "Google"
	default:
		if len(p.provider) == 0 {
			return ""
		}
		return strings.ToUpper(p.provider[:1]) + p.provider[1:]
	}
}

func (p *OAuthProvider) getJSON(
	ctx context.Context,
	client *http.Client,
	path string,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s API error: %s - %s", p.GetDisplayName(), resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// GitHub user info structures
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email      string `json:"email"`
	Primary    bool   `json:"primary"`
	Verified   bool   `json:"verified"`
	Visibility string `json:"visibility"`
}

func (p *OAuthProvider) getGitHubUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (*OAuthUserInfo, error) {
	client := p.config.Client(p.withClient(ctx), token)

	var user githubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}

	// The public profile email carries no verification flag, so the emails
	// endpoint is the source of truth for EmailVerified.
	var emails []githubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return nil, fmt.Errorf("failed to get user email: %w", err)
	}
	email, verified := pickGitHubEmail(user.Email, emails)
	if email == "" {
		return nil, ErrOAuthNoEmail
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &OAuthUserInfo{
		ProviderUserID: fmt.Sprintf("%d", user.ID),
		Username:       user.Login,
		Email:          strings.ToLower(email),
		EmailVerified:  verified,
		FullName:       name,
		AvatarURL:      user.AvatarURL,
	}, nil
}

// pickGitHubEmail prefers the primary verified address, then any verified
// one, then the unverified public address.
func pickGitHubEmail(public string, emails []githubEmail) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if strings.EqualFold(e.Email, public) {
			return e.Email, e.Verified
		}
	}
	return public, false
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *OAuthProvider) getGoogleUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (*OAuthUserInfo, error) {
	var user googleUser
	if p.idTokens != nil {
		raw, _ := token.Extra("id_token").(string)
		if raw == "" {
			return nil, fmt.Errorf("%w: token response has no id_token", ErrIDTokenInvalid)
		}
		claims, err := p.idTokens.Verify(raw)
		if err != nil {
			return nil, err
		}
		user = googleUser{
			Sub:           claims.Subject,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
			Name:          claims.Name,
			Picture:       claims.Picture,
		}
	} else {
		client := p.config.Client(p.withClient(ctx), token)
		if err := p.getJSON(ctx, client, "/v1/userinfo", &user); err != nil {
			return nil, err
		}
	}

	if user.Email == "" {
		return nil, ErrOAuthNoEmail
	}
	name := user.Name
	if name == "" {
		name, _, _ = strings.Cut(user.Email, "@")
	}
	return &OAuthUserInfo{
		ProviderUserID: user.Sub,
		Username:       name,
		Email:          strings.ToLower(user.Email),
		EmailVerified:  user.EmailVerified,
		FullName:       name,
		AvatarURL:      user.Picture,
	}, nil
}

// tokenTTL is the lifetime reported for tokens that carry no expiry
const tokenTTL = time.Hour

// TokenExpiry returns the expiry of an exchanged token
func TokenExpiry(token *oauth2.Token, now time.Time) time.Time {
	if token.Expiry.IsZero() {
		return now.Add(tokenTTL)
	}
	return token.Expiry
}
