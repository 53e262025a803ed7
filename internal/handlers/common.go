package handlers

import (
	"strconv"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const maxUserAgentLength = 500

// bindJSON decodes the request body and responds with INVALID_REQUEST when
// it cannot.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondError(c, core.Errorf(core.KindInvalidRequest, "invalid request body"))
		return false
	}
	return true
}

func sessionMeta(c *gin.Context) services.SessionMeta {
	ua := c.Request.UserAgent()
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}
	return services.SessionMeta{IPAddress: c.ClientIP(), UserAgent: ua}
}

// saveSession updates the cookie session. set pairs are applied after the
// deletions.
func saveSession(c *gin.Context, del []string, set map[string]any) error {
	session := sessions.Default(c)
	for _, key := range del {
		session.Delete(key)
	}
	for key, value := range set {
		session.Set(key, value)
	}
	if err := session.Save(); err != nil {
		return core.Internal("failed to save session", err)
	}
	return nil
}

// persistToken makes token the cookie session's credential
func persistToken(c *gin.Context, token string) error {
	return saveSession(c,
		[]string{middleware.SessionTwoFactorAccount, middleware.SessionTwoFactorExpires},
		map[string]any{middleware.SessionToken: token},
	)
}

// userView is the public shape of an account
type userView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	Role          string     `json:"role"`
	Banned        bool       `json:"banned"`
	BanReason     string     `json:"banReason,omitempty"`
	BanExpires    *time.Time `json:"banExpires,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func newUserView(a *models.Account) *userView {
	if a == nil {
		return nil
	}
	return &userView{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		Name:          a.Name,
		Image:         a.Image,
		Role:          a.Role,
		Banned:        a.Banned,
		BanReason:     a.BanReason,
		BanExpires:    a.BanExpires,
		CreatedAt:     a.CreatedAt,
	}
}

// signInView is returned by every flow that can end in a session
type signInView struct {
	User              *userView `json:"user,omitempty"`
	Token             string    `json:"token,omitempty"`
	TwoFactorRedirect bool      `json:"twoFactorRedirect,omitempty"`
}

func paginationView(p store.PaginationResult) gin.H {
	return gin.H{
		"total":       p.Total,
		"totalPages":  p.TotalPages,
		"currentPage": p.CurrentPage,
		"pageSize":    p.PageSize,
		"hasPrev":     p.HasPrev,
		"hasNext":     p.HasNext,
	}
}

func pageParams(c *gin.Context) store.PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", c.DefaultQuery("page_size", "10")))
	return store.NewPaginationParams(page, pageSize, c.Query("search"))
}
