package handlers

import (
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/services"

	"github.com/gin-gonic/gin"
)

// TwoFactorHandler serves enrollment management and the second step of a
// two-factor sign-in
type TwoFactorHandler struct {
	twoFactor *services.TwoFactorService
	accounts  *services.AccountService
	auth      *AuthHandler
	now       func() time.Time
}

func NewTwoFactorHandler(
	tf *services.TwoFactorService,
	accounts *services.AccountService,
	auth *AuthHandler,
) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: tf, accounts: accounts, auth: auth, now: time.Now}
}

type passwordRequest struct {
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// Enable handles POST /api/auth/two-factor/enable
func (h *TwoFactorHandler) Enable(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.twoFactor.Enable(c.Request.Context(), middleware.CurrentAccount(c).ID, req.Password)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, enrollment)
}

// Disable handles POST /api/auth/two-factor/disable
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.twoFactor.Disable(c.Request.Context(), middleware.CurrentAccount(c).ID, req.Password); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

// GenerateBackupCodes handles POST /api/auth/two-factor/generate-backup-codes
func (h *TwoFactorHandler) GenerateBackupCodes(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	codes, err := h.twoFactor.RegenerateBackupCodes(
		c.Request.Context(),
		middleware.CurrentAccount(c).ID,
		req.Password,
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"backupCodes": codes})
}

// VerifyTOTP handles POST /api/auth/two-factor/verify-totp. With a session it
// confirms a pending enrollment; with a sign-in challenge it completes the
// sign-in.
func (h *TwoFactorHandler) VerifyTOTP(c *gin.Context) {
	var req codeRequest
	if !bindJSON(c, &req) {
		return
	}
	if account := middleware.CurrentAccount(c); account != nil {
		if err := h.twoFactor.VerifyEnrollment(c.Request.Context(), account.ID, req.Code); err != nil {
			middleware.RespondError(c, err)
			return
		}
		middleware.RespondOK(c, gin.H{"status": true})
		return
	}
	h.completeSignIn(c, req.Code, false)
}

// VerifyBackupCode handles POST /api/auth/two-factor/verify-backup-code
func (h *TwoFactorHandler) VerifyBackupCode(c *gin.Context) {
	var req codeRequest
	if !bindJSON(c, &req) {
		return
	}
	h.completeSignIn(c, req.Code, true)
}

// Status handles GET /api/auth/two-factor/status
func (h *TwoFactorHandler) Status(c *gin.Context) {
	status, err := h.twoFactor.Status(c.Request.Context(), middleware.CurrentAccount(c).ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, status)
}

func (h *TwoFactorHandler) completeSignIn(c *gin.Context, code string, backup bool) {
	accountID, ok := pendingChallenge(c, h.now())
	if !ok {
		middleware.RespondError(c, core.Errorf(core.KindUnauthorized, "no pending two-factor sign-in"))
		return
	}
	result, err := h.accounts.CompleteTwoFactorSignIn(
		c.Request.Context(),
		accountID,
		code,
		backup,
		sessionMeta(c),
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	h.auth.finishSignIn(c, result)
}
