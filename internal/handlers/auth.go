package handlers

import (
	"net/http"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// twoFactorChallengeTTL bounds how long a password-verified sign-in may wait
// for its second factor
const twoFactorChallengeTTL = 5 * time.Minute

// AuthHandler serves the email/password account flows
type AuthHandler struct {
	accounts *services.AccountService
	sessions *services.SessionService
	baseURL  string
	now      func() time.Time
}

func NewAuthHandler(
	accounts *services.AccountService,
	sessions *services.SessionService,
	baseURL string,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// finishSignIn persists the session of a successful sign-in, or parks the
// account in a two-factor challenge.
func (h *AuthHandler) finishSignIn(c *gin.Context, result *services.SignInResult) {
	if result.TwoFactorRequired {
		if err := startChallenge(c, result.Account.ID, h.now()); err != nil {
			middleware.RespondError(c, err)
			return
		}
		middleware.RespondOK(c, signInView{TwoFactorRedirect: true})
		return
	}

	view := signInView{User: newUserView(result.Account)}
	if result.Session != nil {
		if err := persistToken(c, result.Session.Token); err != nil {
			middleware.RespondError(c, err)
			return
		}
		view.Token = result.Session.Token
	}
	middleware.RespondOK(c, view)
}

// startChallenge parks a password-verified account until its second
// factor arrives
func startChallenge(c *gin.Context, accountID string, now time.Time) error {
	return saveSession(c, []string{middleware.SessionToken}, map[string]any{
		middleware.SessionTwoFactorAccount: accountID,
		middleware.SessionTwoFactorExpires: now.Add(twoFactorChallengeTTL).Unix(),
	})
}

// pendingChallenge returns the account waiting in a two-factor challenge
func pendingChallenge(c *gin.Context, now time.Time) (string, bool) {
	session := sessions.Default(c)
	accountID, _ := session.Get(middleware.SessionTwoFactorAccount).(string)
	expires, _ := session.Get(middleware.SessionTwoFactorExpires).(int64)
	if accountID == "" || now.Unix() >= expires {
		return "", false
	}
	return accountID, true
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

// SignUpEmail handles POST /api/auth/sign-up/email
func (h *AuthHandler) SignUpEmail(c *gin.Context) {
	var req signUpRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.accounts.SignUpEmail(c.Request.Context(), services.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Image:    req.Image,
	}, sessionMeta(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	h.finishSignIn(c, result)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInEmail handles POST /api/auth/sign-in/email
func (h *AuthHandler) SignInEmail(c *gin.Context) {
	var req signInRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.accounts.SignInEmail(c.Request.Context(), req.Email, req.Password, sessionMeta(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	h.finishSignIn(c, result)
}

// SignOut handles POST /api/auth/sign-out. The cookie is cleared even when
// the session was already gone.
func (h *AuthHandler) SignOut(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token != "" {
		err := h.sessions.SignOut(c.Request.Context(), token)
		if err != nil && core.KindOf(err) != core.KindUnauthorized {
			middleware.RespondError(c, err)
			return
		}
	}
	if err := saveSession(c, []string{
		middleware.SessionToken,
		middleware.SessionImpersonatorToken,
	}, nil); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"success": true})
}

// GetSession handles GET /api/auth/get-session. Anonymous callers get null
// data rather than an error.
func (h *AuthHandler) GetSession(c *gin.Context) {
	session, account, err := h.sessions.GetSession(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		if core.KindOf(err) == core.KindUnauthorized {
			middleware.RespondOK(c, nil)
			return
		}
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"session": session, "user": newUserView(account)})
}

type emailRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo"`
}

// SendVerificationEmail handles POST /api/auth/send-verification-email
func (h *AuthHandler) SendVerificationEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.accounts.SendVerificationEmail(c.Request.Context(), req.Email); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

// VerifyEmail handles GET /api/auth/verify-email?token=...&callbackURL=...
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	result, err := h.accounts.VerifyEmail(c.Request.Context(), c.Query("token"), sessionMeta(c))
	callback := util.SafeRedirect(c.Query("callbackURL"), h.baseURL, "")
	if err != nil {
		if callback != "" {
			c.Redirect(http.StatusFound, appendError(callback, core.KindOf(err)))
			return
		}
		middleware.RespondError(c, err)
		return
	}
	if callback == "" {
		h.finishSignIn(c, result)
		return
	}

	if result.TwoFactorRequired {
		err = startChallenge(c, result.Account.ID, h.now())
	} else if result.Session != nil {
		err = persistToken(c, result.Session.Token)
	}
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, callback)
}

// RequestPasswordReset handles POST /api/auth/request-password-reset. The
// response does not reveal whether the address is registered.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email, req.RedirectTo); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/auth/change-password. Other sessions are
// always revoked.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	revoked, err := h.accounts.ChangePassword(
		c.Request.Context(),
		middleware.CurrentToken(c),
		req.CurrentPassword,
		req.NewPassword,
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"revokedSessions": revoked})
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

// UpdateUser handles POST /api/auth/update-user
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := h.accounts.UpdateUser(
		c.Request.Context(),
		middleware.CurrentAccount(c).ID,
		req.Name,
		req.Image,
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"user": newUserView(account)})
}

type deleteUserRequest struct {
	Password string `json:"password"`
}

// DeleteUser handles POST /api/auth/delete-user
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	var req deleteUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), middleware.CurrentToken(c), req.Password); err != nil {
		middleware.RespondError(c, err)
		return
	}
	if err := saveSession(c, []string{middleware.SessionToken}, nil); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"success": true})
}

// CheckAvailability handles GET /api/check-availability?name=...
func (h *AuthHandler) CheckAvailability(c *gin.Context) {
	available, message, err := h.accounts.CheckAvailability(c.Request.Context(), c.Query("name"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": available, "message": message})
}
