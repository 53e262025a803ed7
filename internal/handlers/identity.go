package handlers

import (
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/services"

	"github.com/gin-gonic/gin"
)

// IdentityHandler lists and removes the sign-in methods of an account
type IdentityHandler struct {
	identities *services.IdentityService
}

func NewIdentityHandler(is *services.IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: is}
}

// ListAccounts handles GET /api/auth/list-accounts
func (h *IdentityHandler) ListAccounts(c *gin.Context) {
	links, err := h.identities.ListIdentities(c.Request.Context(), middleware.CurrentAccount(c).ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(links))
	for i := range links {
		out = append(out, gin.H{
			"id":         links[i].ID,
			"providerId": links[i].ProviderID,
			"accountId":  links[i].ExternalAccountID,
			"scopes":     links[i].Scope,
			"createdAt":  links[i].CreatedAt,
		})
	}
	middleware.RespondOK(c, out)
}

type unlinkRequest struct {
	ProviderID string `json:"providerId"`
	AccountID  string `json:"accountId"`
}

// UnlinkAccount handles POST /api/auth/unlink-account
func (h *IdentityHandler) UnlinkAccount(c *gin.Context) {
	var req unlinkRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.identities.UnlinkProvider(
		c.Request.Context(),
		middleware.CurrentAccount(c).ID,
		req.ProviderID,
		req.AccountID,
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}
