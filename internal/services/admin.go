package services

import (
	"context"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/store"
)

// AdminService is the authorization gate and the administrative mutations
// behind it. Every operation checks the actor's permission first and fails
// closed.
type AdminService struct {
	store    *store.Store
	roles    *permission.RoleManager
	sessions *SessionService
	audit    *AuditService
	metrics  core.Recorder
	now      func() time.Time
}

func NewAdminService(
	s *store.Store,
	roles *permission.RoleManager,
	sessions *SessionService,
	audit *AuditService,
	m core.Recorder,
) *AdminService {
	return &AdminService{
		store:    s,
		roles:    roles,
		sessions: sessions,
		audit:    audit,
		metrics:  m,
		now:      utcNow,
	}
}

// HasPermission is a side-effect free predicate. A missing or banned
// account, an unknown role or resource, and an empty action list all yield
// false.
func (s *AdminService) HasPermission(
	_ context.Context,
	accountID, resource string,
	actions ...string,
) bool {
	if accountID == "" {
		return false
	}
	account, err := s.store.GetAccountByID(accountID)
	if err != nil {
		return false
	}
	if account.IsBanned(s.now()) {
		return false
	}
	return s.roles.Allows(account.Role, resource, actions...)
}

func (s *AdminService) require(
	ctx context.Context,
	actorID, resource, action string,
) error {
	if s.HasPermission(ctx, actorID, resource, action) {
		return nil
	}
	s.metrics.RecordAdminAction(resource+":"+action, false)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventAuthorizationDenied,
		Severity:       models.SeverityWarning,
		ActorAccountID: actorID,
		ResourceType:   models.ResourceAccount,
		Action:         "Denied " + resource + ":" + action,
		Success:        false,
	})
	return core.ErrForbidden
}

// ListUsers returns a page of accounts
func (s *AdminService) ListUsers(
	ctx context.Context,
	actorID string,
	params store.PaginationParams,
) ([]models.Account, store.PaginationResult, error) {
	if err := s.require(ctx, actorID, permission.ResourceUser, permission.ActionList); err != nil {
		return nil, store.PaginationResult{}, err
	}
	accounts, page, err := s.store.ListAccounts(params)
	if err != nil {
		return nil, store.PaginationResult{}, wrapErr("list users", err)
	}
	return accounts, page, nil
}

// BanUser bans the target and revokes every session it holds in the same
// transaction. expiresIn <= 0 bans indefinitely.
func (s *AdminService) BanUser(
	ctx context.Context,
	actorID, targetID, reason string,
	expiresIn time.Duration,
) error {
	if err := s.require(ctx, actorID, permission.ResourceUser, permission.ActionBan); err != nil {
		return err
	}
	if actorID == targetID {
		return core.Errorf(core.KindForbidden, "you cannot ban yourself")
	}

	var expires *time.Time
	if expiresIn > 0 {
		t := s.now().Add(expiresIn)
		expires = &t
	}

	var revoked []models.Session
	err := s.store.WithAccountLock(ctx, targetID, func(tx *store.Store, _ *models.Account) error {
		if err := tx.SetBan(targetID, true, reason, expires); err != nil {
			return err
		}
		var err error
		revoked, err = tx.DeleteSessionsByAccount(targetID)
		return err
	})
	if err != nil {
		s.metrics.RecordAdminAction("ban", false)
		return notFoundAs("ban user", err, core.ErrTargetNotFound)
	}

	s.sessions.evict(ctx, revoked, ReasonBanned)
	s.sessions.InvalidateAccount(ctx, targetID)
	s.metrics.RecordAdminAction("ban", true)
	log.Printf("[Admin] account=%s banned by %s (%d sessions revoked)", targetID, actorID, len(revoked))
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventUserBanned,
		Severity:       models.SeverityWarning,
		ActorAccountID: actorID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     targetID,
		Action:         "Banned user",
		Details:        models.AuditDetails{"reason": reason, "sessions_revoked": len(revoked)},
		Success:        true,
	})
	return nil
}

// UnbanUser lifts a ban
func (s *AdminService) UnbanUser(ctx context.Context, actorID, targetID string) error {
	if err := s.require(ctx, actorID, permission.ResourceUser, permission.ActionBan); err != nil {
		return err
	}
	err := s.store.WithAccountLock(ctx, targetID, func(tx *store.Store, _ *models.Account) error {
		return tx.SetBan(targetID, false, "", nil)
	})
	if err != nil {
		s.metrics.RecordAdminAction("unban", false)
		return notFoundAs("unban user", err, core.ErrTargetNotFound)
	}

	s.sessions.InvalidateAccount(ctx, targetID)
	s.metrics.RecordAdminAction("unban", true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventUserUnbanned,
		ActorAccountID: actorID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     targetID,
		Action:         "Unbanned user",
		Success:        true,
	})
	return nil
}

// RemoveUser deletes the target with every link, session, second factor,
// token and passkey in one transaction.
func (s *AdminService) RemoveUser(ctx context.Context, actorID, targetID string) error {
	if err := s.require(ctx, actorID, permission.ResourceUser, permission.ActionDelete); err != nil {
		return err
	}
	if actorID == targetID {
		return core.Errorf(core.KindForbidden, "use delete-user to remove your own account")
	}

	var revoked []models.Session
	err := s.store.WithAccountLock(ctx, targetID, func(tx *store.Store, _ *models.Account) error {
		var err error
		revoked, err = tx.DeleteAccountCascade(targetID)
		return err
	})
	if err != nil {
		s.metrics.RecordAdminAction("remove", false)
		return notFoundAs("remove user", err, core.ErrTargetNotFound)
	}

	s.sessions.evict(ctx, revoked, ReasonAccountDeleted)
	s.metrics.RecordAdminAction("remove", true)
	log.Printf("[Admin] account=%s removed by %s", targetID, actorID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventUserRemoved,
		Severity:       models.SeverityCritical,
		ActorAccountID: actorID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     targetID,
		Action:         "Removed user",
		Success:        true,
	})
	return nil
}

// SetRole changes the target's role. Admins cannot change their own role.
func (s *AdminService) SetRole(ctx context.Context, actorID, targetID, role string) error {
	if err := s.require(ctx, actorID, permission.ResourceUser, permission.ActionSetRole); err != nil {
		return err
	}
	if !s.roles.HasRole(role) {
		return core.Errorf(core.KindInvalidRequest, "unknown role %q", role)
	}
	if actorID == targetID {
		return core.Errorf(core.KindForbidden, "you cannot change your own role")
	}

	var previous string
	err := s.store.WithAccountLock(ctx, targetID, func(tx *store.Store, account *models.Account) error {
		previous = account.Role
		account.Role = role
		account.UpdatedAt = s.now()
		return tx.UpdateAccount(account)
	})
	if err != nil {
		s.metrics.RecordAdminAction("set_role", false)
		return notFoundAs("set role", err, core.ErrTargetNotFound)
	}

	s.sessions.InvalidateAccount(ctx, targetID)
	s.metrics.RecordAdminAction("set_role", true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventUserRoleChanged,
		Severity:       models.SeverityWarning,
		ActorAccountID: actorID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     targetID,
		Action:         "Changed role",
		Details:        models.AuditDetails{"from": previous, "to": role},
		Success:        true,
	})
	return nil
}

// ListUserSessions returns the target's unexpired sessions
func (s *AdminService) ListUserSessions(
	ctx context.Context,
	actorID, targetID string,
) ([]models.Session, error) {
	if err := s.require(ctx, actorID, permission.ResourceSession, permission.ActionList); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccountByID(targetID); err != nil {
		return nil, notFoundAs("get account", err, core.ErrTargetNotFound)
	}
	return s.sessions.ListSessions(ctx, targetID)
}

// RevokeUserSessions signs the target out everywhere
func (s *AdminService) RevokeUserSessions(ctx context.Context, actorID, targetID string) (int, error) {
	if err := s.require(ctx, actorID, permission.ResourceSession, permission.ActionRevoke); err != nil {
		return 0, err
	}
	n, err := s.sessions.RevokeAllSessions(ctx, targetID, ReasonAdminRevoke)
	if err != nil {
		s.metrics.RecordAdminAction("revoke_sessions", false)
		return 0, err
	}

	s.metrics.RecordAdminAction("revoke_sessions", true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventUserSessionsRevoked,
		Severity:       models.SeverityWarning,
		ActorAccountID: actorID,
		ResourceType:   models.ResourceSession,
		ResourceID:     targetID,
		Action:         "Revoked user sessions",
		Details:        models.AuditDetails{"count": n},
		Success:        true,
	})
	return n, nil
}

// ListAuditLogs pages through the audit log
func (s *AdminService) ListAuditLogs(
	ctx context.Context,
	actorID string,
	params store.PaginationParams,
	filters store.AuditLogFilters,
) ([]models.AuditLog, store.PaginationResult, error) {
	if err := s.require(ctx, actorID, permission.ResourceAudit, permission.ActionList); err != nil {
		return nil, store.PaginationResult{}, err
	}
	logs, page, err := s.store.GetAuditLogsPaginated(params, filters)
	if err != nil {
		return nil, store.PaginationResult{}, wrapErr("list audit logs", err)
	}
	return logs, page, nil
}
