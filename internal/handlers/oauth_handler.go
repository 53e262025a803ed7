package handlers

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-authgate/accountgate/internal/auth"
	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// OAuthHandler handles social sign-in and account linking
type OAuthHandler struct {
	providers  map[string]*auth.OAuthProvider
	accounts   *services.AccountService
	identities *services.IdentityService
	baseURL    string
	metrics    core.Recorder
	now        func() time.Time
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(
	providers map[string]*auth.OAuthProvider,
	accounts *services.AccountService,
	identities *services.IdentityService,
	baseURL string,
	m core.Recorder,
) *OAuthHandler {
	return &OAuthHandler{
		providers:  providers,
		accounts:   accounts,
		identities: identities,
		baseURL:    baseURL,
		metrics:    m,
		now:        time.Now,
	}
}

// appendError adds error=<kind> to a browser redirect target
func appendError(target string, kind core.Kind) string {
	u, err := url.Parse(target)
	if err != nil {
		return "/?error=" + url.QueryEscape(string(kind))
	}
	q := u.Query()
	q.Set("error", string(kind))
	u.RawQuery = q.Encode()
	return u.String()
}

// redirectTarget returns the caller's callbackURL when it is safe, else "/"
func (h *OAuthHandler) redirectTarget(c *gin.Context) string {
	return util.SafeRedirect(c.Query("callbackURL"), h.baseURL, "/")
}

// startFlow stores the state and sends the browser to the provider.
// linkAccount is empty for sign-in.
func (h *OAuthHandler) startFlow(c *gin.Context, linkAccount string) {
	providerID := c.Param("provider")
	provider, ok := h.providers[providerID]
	if !ok {
		middleware.RespondError(c, core.Errorf(core.KindNotFound, "provider %q is not configured", providerID))
		return
	}

	state, err := util.RandomToken(32)
	if err != nil {
		middleware.RespondError(c, core.Internal("failed to generate OAuth state", err))
		return
	}

	set := map[string]any{
		middleware.SessionOAuthState:    state,
		middleware.SessionOAuthProvider: providerID,
		middleware.SessionOAuthRedirect: h.redirectTarget(c),
	}
	del := []string{middleware.SessionOAuthLinkAccount}
	if linkAccount != "" {
		set[middleware.SessionOAuthLinkAccount] = linkAccount
		del = nil
	}
	if err := saveSession(c, del, set); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, provider.GetAuthURL(state))
}

// SignInSocial handles GET /api/auth/sign-in/social/:provider
func (h *OAuthHandler) SignInSocial(c *gin.Context) {
	h.startFlow(c, "")
}

// LinkSocial handles GET /api/auth/link-social/:provider
func (h *OAuthHandler) LinkSocial(c *gin.Context) {
	h.startFlow(c, middleware.CurrentAccount(c).ID)
}

// Callback handles GET /api/auth/callback/:provider. Every outcome is a
// browser redirect; failures carry error=<kind>.
func (h *OAuthHandler) Callback(c *gin.Context) {
	providerID := c.Param("provider")
	session := sessions.Default(c)
	savedState, _ := session.Get(middleware.SessionOAuthState).(string)
	savedProvider, _ := session.Get(middleware.SessionOAuthProvider).(string)
	redirect, _ := session.Get(middleware.SessionOAuthRedirect).(string)
	linkAccount, _ := session.Get(middleware.SessionOAuthLinkAccount).(string)
	if redirect == "" {
		redirect = "/"
	}

	fail := func(err error) {
		h.metrics.RecordOAuthCallback(providerID, false)
		if core.KindOf(err) == core.KindInternal {
			log.Printf("[OAuth] callback for %s failed: %v", providerID, err)
		}
		_ = saveSession(c, []string{
			middleware.SessionOAuthState,
			middleware.SessionOAuthProvider,
			middleware.SessionOAuthRedirect,
			middleware.SessionOAuthLinkAccount,
		}, nil)
		c.Redirect(http.StatusFound, appendError(redirect, core.KindOf(err)))
	}

	provider, ok := h.providers[providerID]
	if !ok {
		fail(core.Errorf(core.KindNotFound, "provider %q is not configured", providerID))
		return
	}
	state := c.Query("state")
	if savedState == "" || savedProvider != providerID || !util.ConstantTimeEqual(state, savedState) {
		fail(core.Errorf(core.KindInvalidRequest, "OAuth state mismatch"))
		return
	}
	if c.Query("error") != "" {
		fail(core.Errorf(core.KindForbidden, "provider denied access: %s", c.Query("error")))
		return
	}

	ctx := c.Request.Context()
	token, err := provider.ExchangeCode(ctx, c.Query("code"))
	if err != nil {
		fail(core.Internal("failed to exchange authorization code", err))
		return
	}
	info, err := provider.GetUserInfo(ctx, token)
	if err != nil {
		fail(core.Internal("failed to fetch user info", err))
		return
	}
	tokens := providerTokens(token, info, h.now())

	if linkAccount != "" {
		// Linking must be finished by the account that started it
		current := middleware.CurrentAccount(c)
		if current == nil || current.ID != linkAccount {
			fail(core.Errorf(core.KindUnauthorized, "link requires the initiating session"))
			return
		}
		if _, err := h.identities.LinkProvider(ctx, linkAccount, providerID, info.ProviderUserID, tokens); err != nil {
			fail(err)
			return
		}
		h.metrics.RecordOAuthCallback(providerID, true)
		h.finish(c, redirect, "")
		return
	}

	result, err := h.accounts.SignInSocial(ctx, providerID, info, tokens, sessionMeta(c))
	if err == nil && result.Session == nil {
		err = core.Internal("social sign-in issued no session", nil)
	}
	if err != nil {
		fail(err)
		return
	}
	h.metrics.RecordOAuthCallback(providerID, true)
	h.finish(c, redirect, result.Session.Token)
}

// finish clears the OAuth state, stores token when set, and redirects
func (h *OAuthHandler) finish(c *gin.Context, redirect, token string) {
	set := map[string]any{}
	if token != "" {
		set[middleware.SessionToken] = token
	}
	err := saveSession(c, []string{
		middleware.SessionOAuthState,
		middleware.SessionOAuthProvider,
		middleware.SessionOAuthRedirect,
		middleware.SessionOAuthLinkAccount,
	}, set)
	if err != nil {
		log.Printf("[OAuth] failed to save session: %v", err)
		c.Redirect(http.StatusFound, appendError(redirect, core.KindInternal))
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

func providerTokens(token *oauth2.Token, info *auth.OAuthUserInfo, now time.Time) *services.ProviderTokens {
	scope, _ := token.Extra("scope").(string)
	return &services.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       auth.TokenExpiry(token, now),
		Scope:        scope,
		Email:        info.Email,
	}
}
