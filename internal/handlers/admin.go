package handlers

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/go-authgate/accountgate/internal/middleware"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/services"
	"github.com/go-authgate/accountgate/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// auditExportLimit caps the rows written by one CSV export
const auditExportLimit = 10000

// AdminHandler exposes the admin surface. Permission checks happen in the
// services so every caller gets the same answer.
type AdminHandler struct {
	admin         *services.AdminService
	impersonation *services.ImpersonationService
	audit         *services.AuditService
}

func NewAdminHandler(
	admin *services.AdminService,
	impersonation *services.ImpersonationService,
	audit *services.AuditService,
) *AdminHandler {
	return &AdminHandler{admin: admin, impersonation: impersonation, audit: audit}
}

func actorID(c *gin.Context) string {
	return middleware.CurrentAccount(c).ID
}

// ListUsers handles GET /api/auth/admin/list-users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	accounts, page, err := h.admin.ListUsers(c.Request.Context(), actorID(c), pageParams(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	users := make([]*userView, 0, len(accounts))
	for i := range accounts {
		users = append(users, newUserView(&accounts[i]))
	}
	middleware.RespondOK(c, gin.H{"users": users, "pagination": paginationView(page)})
}

type userIDRequest struct {
	UserID string `json:"userId"`
}

type banRequest struct {
	UserID       string `json:"userId"`
	BanReason    string `json:"banReason"`
	BanExpiresIn int64  `json:"banExpiresIn"`
}

// BanUser handles POST /api/auth/admin/ban-user. banExpiresIn is in seconds;
// zero or absent bans indefinitely.
func (h *AdminHandler) BanUser(c *gin.Context) {
	var req banRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.admin.BanUser(
		c.Request.Context(),
		actorID(c),
		req.UserID,
		req.BanReason,
		time.Duration(req.BanExpiresIn)*time.Second,
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

// UnbanUser handles POST /api/auth/admin/unban-user
func (h *AdminHandler) UnbanUser(c *gin.Context) {
	var req userIDRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.UnbanUser(c.Request.Context(), actorID(c), req.UserID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

// RemoveUser handles POST /api/auth/admin/remove-user
func (h *AdminHandler) RemoveUser(c *gin.Context) {
	var req userIDRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.RemoveUser(c.Request.Context(), actorID(c), req.UserID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

type setRoleRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// SetRole handles POST /api/auth/admin/set-role
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.SetRole(c.Request.Context(), actorID(c), req.UserID, req.Role); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"status": true})
}

// ListUserSessions handles POST /api/auth/admin/list-user-sessions
func (h *AdminHandler) ListUserSessions(c *gin.Context) {
	var req userIDRequest
	if !bindJSON(c, &req) {
		return
	}
	list, err := h.admin.ListUserSessions(c.Request.Context(), actorID(c), req.UserID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"sessions": list})
}

// RevokeUserSessions handles POST /api/auth/admin/revoke-user-sessions
func (h *AdminHandler) RevokeUserSessions(c *gin.Context) {
	var req userIDRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.admin.RevokeUserSessions(c.Request.Context(), actorID(c), req.UserID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"revoked": n})
}

// ImpersonateUser handles POST /api/auth/admin/impersonate-user. The admin's
// own token is parked in the cookie session until impersonation stops.
func (h *AdminHandler) ImpersonateUser(c *gin.Context) {
	var req userIDRequest
	if !bindJSON(c, &req) {
		return
	}
	adminToken := middleware.CurrentToken(c)
	issued, err := h.impersonation.Impersonate(c.Request.Context(), adminToken, req.UserID, sessionMeta(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	err = saveSession(c, nil, map[string]any{
		middleware.SessionImpersonatorToken: adminToken,
		middleware.SessionToken:             issued.Token,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{
		"token":   issued.Token,
		"session": issued.Session,
	})
}

// StopImpersonating handles POST /api/auth/admin/stop-impersonating. When the
// admin session is gone the caller ends up signed out.
func (h *AdminHandler) StopImpersonating(c *gin.Context) {
	resumed, err := h.impersonation.StopImpersonating(c.Request.Context(), middleware.CurrentToken(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	adminToken, _ := sessions.Default(c).Get(middleware.SessionImpersonatorToken).(string)
	del := []string{middleware.SessionImpersonatorToken}
	set := map[string]any{}
	if resumed != nil && adminToken != "" {
		set[middleware.SessionToken] = adminToken
	} else {
		del = append(del, middleware.SessionToken)
		adminToken = ""
	}
	if err := saveSession(c, del, set); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{
		"resumed": resumed != nil,
		"session": resumed,
		"token":   adminToken,
	})
}

type hasPermissionRequest struct {
	Permission map[string][]string `json:"permission"`
}

// HasPermission handles POST /api/auth/admin/has-permission. Every listed
// resource must allow every listed action.
func (h *AdminHandler) HasPermission(c *gin.Context) {
	var req hasPermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	allowed := len(req.Permission) > 0
	for resource, actions := range req.Permission {
		if !h.admin.HasPermission(c.Request.Context(), actorID(c), resource, actions...) {
			allowed = false
			break
		}
	}
	middleware.RespondOK(c, gin.H{"allowed": allowed})
}

// auditFilters reads the audit log query string
func auditFilters(c *gin.Context) store.AuditLogFilters {
	filters := store.AuditLogFilters{
		EventType:      models.EventType(c.Query("event_type")),
		ActorAccountID: c.Query("actor_account_id"),
		ResourceType:   models.ResourceType(c.Query("resource_type")),
		ResourceID:     c.Query("resource_id"),
		Severity:       models.EventSeverity(c.Query("severity")),
		ActorIP:        c.Query("actor_ip"),
		Search:         c.Query("search"),
	}
	if raw := c.Query("success"); raw != "" {
		if success, err := strconv.ParseBool(raw); err == nil {
			filters.Success = &success
		}
	}
	if raw := c.Query("start_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.StartTime = t
		}
	}
	if raw := c.Query("end_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.EndTime = t
		}
	}
	return filters
}

// ListAuditLogs handles GET /api/auth/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	logs, page, err := h.admin.ListAuditLogs(c.Request.Context(), actorID(c), pageParams(c), auditFilters(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, gin.H{"logs": logs, "pagination": paginationView(page)})
}

// ExportAuditLogs handles GET /api/auth/admin/audit-logs/export and streams
// matching entries as CSV
func (h *AdminHandler) ExportAuditLogs(c *gin.Context) {
	filters := auditFilters(c)
	logs, _, err := h.admin.ListAuditLogs(
		c.Request.Context(),
		actorID(c),
		store.PaginationParams{Page: 1, PageSize: auditExportLimit},
		filters,
	)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(
		"attachment; filename=audit_logs_%s.csv",
		time.Now().Format("2006-01-02"),
	))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write([]string{
		"Event Time",
		"Event Type",
		"Severity",
		"Actor Account",
		"Impersonator",
		"Actor IP",
		"Resource Type",
		"Resource ID",
		"Action",
		"Success",
		"Error Message",
	}); err != nil {
		return
	}
	for i := range logs {
		entry := &logs[i]
		if err := writer.Write([]string{
			entry.EventTime.Format(time.RFC3339),
			string(entry.EventType),
			string(entry.Severity),
			entry.ActorAccountID,
			entry.ImpersonatorID,
			entry.ActorIP,
			string(entry.ResourceType),
			entry.ResourceID,
			entry.Action,
			strconv.FormatBool(entry.Success),
			entry.ErrorMessage,
		}); err != nil {
			return
		}
	}

	h.audit.Log(c.Request.Context(), services.AuditLogEntry{
		EventType:      models.EventAuditLogExported,
		Severity:       models.SeverityInfo,
		ActorAccountID: actorID(c),
		Action:         "Exported audit logs",
		Details:        models.AuditDetails{"record_count": len(logs)},
		Success:        true,
	})
}

