package handlers

import (
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/services"

	"github.com/gin-gonic/gin"
)

// SessionHandler lets an account manage its own sessions
type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(ss *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: ss}
}

// ListSessions handles GET /api/auth/list-sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	list, err := h.sessions.ListSessions(c.Request.Context(), middleware.CurrentAccount(c).ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	current := middleware.CurrentSession(c).ID
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, gin.H{
			"id":             list[i].ID,
			"userAgent":      list[i].UserAgent,
			"ipAddress":      list[i].IPAddress,
			"createdAt":      list[i].CreatedAt,
			"expiresAt":      list[i].ExpiresAt,
			"impersonatedBy": list[i].ImpersonatedBy,
			"current":        list[i].ID == current,
		})
	}
	middleware.RespondOK(c, out)
}

type revokeSessionRequest struct {
	ID string `json:"id"`
}

// RevokeSession handles POST /api/auth/revoke-session. Revoking the current
// session also clears the cookie.
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	var req revokeSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	self, err := h.sessions.RevokeSession(c.Request.Context(), middleware.CurrentToken(c), req.ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if self {
		if err := saveSession(c, []string{middleware.SessionToken}, nil); err != nil {
			middleware.RespondError(c, err)
			return
		}
	}
	middleware.RespondOK(c, gin.H{"status": true, "signedOut": self})
}

// RevokeOtherSessions handles POST /api/auth/revoke-other-sessions
func (h *SessionHandler) RevokeOtherSessions(c *gin.Context) {
	n, err := h.sessions.RevokeOtherSessions(c.Request.Context(), middleware.CurrentToken(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"revoked": n})
}
