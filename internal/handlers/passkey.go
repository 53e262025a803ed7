package handlers

import (
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/services"

	"github.com/gin-gonic/gin"
)

// PasskeyHandler manages registered passkeys and passkey sign-in. The
// WebAuthn ceremonies themselves run in front of these endpoints.
type PasskeyHandler struct {
	passkeys *services.PasskeyService
	auth     *AuthHandler
}

func NewPasskeyHandler(ps *services.PasskeyService, auth *AuthHandler) *PasskeyHandler {
	return &PasskeyHandler{passkeys: ps, auth: auth}
}

type addPasskeyRequest struct {
	Name         string   `json:"name"`
	CredentialID string   `json:"credentialId"`
	PublicKey    string   `json:"publicKey"`
	Counter      uint32   `json:"counter"`
	DeviceType   string   `json:"deviceType"`
	BackedUp     bool     `json:"backedUp"`
	Transports   []string `json:"transports"`
}

// AddPasskey handles POST /api/auth/passkey/add-passkey
func (h *PasskeyHandler) AddPasskey(c *gin.Context) {
	var req addPasskeyRequest
	if !bindJSON(c, &req) {
		return
	}
	passkey, err := h.passkeys.AddPasskey(c.Request.Context(), middleware.CurrentAccount(c).ID, services.PasskeyInput{
		Name:         req.Name,
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		Counter:      req.Counter,
		DeviceType:   req.DeviceType,
		BackedUp:     req.BackedUp,
		Transports:   req.Transports,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, passkey)
}

// ListPasskeys handles GET /api/auth/passkey/list-user-passkeys
func (h *PasskeyHandler) ListPasskeys(c *gin.Context) {
	list, err := h.passkeys.ListPasskeys(c.Request.Context(), middleware.CurrentAccount(c).ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, list)
}

type deletePasskeyRequest struct {
	ID string `json:"id"`
}

// DeletePasskey handles POST /api/auth/passkey/delete-passkey
func (h *PasskeyHandler) DeletePasskey(c *gin.Context) {
	var req deletePasskeyRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.passkeys.DeletePasskey(c.Request.Context(), middleware.CurrentAccount(c).ID, req.ID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

type passkeySignInRequest struct {
	CredentialID string `json:"credentialId"`
	Counter      uint32 `json:"counter"`
}

// SignInPasskey handles POST /api/auth/sign-in/passkey with a verified
// assertion
func (h *PasskeyHandler) SignInPasskey(c *gin.Context) {
	var req passkeySignInRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.passkeys.SignInPasskey(c.Request.Context(), req.CredentialID, req.Counter, sessionMeta(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	h.auth.finishSignIn(c, result)
}
