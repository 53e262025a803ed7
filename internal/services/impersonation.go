package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/permission"
	"github.com/go-authgate/accountgate/internal/store"
)

// ImpersonationService lets an admin act as another account. The admin's
// own session is suspended, not deleted, until the impersonation ends.
type ImpersonationService struct {
	store    *store.Store
	sessions *SessionService
	admin    *AdminService
	lifetime time.Duration
	audit    *AuditService
	metrics  core.Recorder
}

func NewImpersonationService(
	s *store.Store,
	sessions *SessionService,
	admin *AdminService,
	lifetime time.Duration,
	audit *AuditService,
	m core.Recorder,
) *ImpersonationService {
	return &ImpersonationService{
		store:    s,
		sessions: sessions,
		admin:    admin,
		lifetime: lifetime,
		audit:    audit,
		metrics:  m,
	}
}

// Impersonate starts a session for targetID on behalf of the admin holding
// adminToken. Checks run in order: nesting, permission, target existence,
// self-impersonation. Nothing is written unless all pass.
func (s *ImpersonationService) Impersonate(
	ctx context.Context,
	adminToken, targetID string,
	meta SessionMeta,
) (*IssuedSession, error) {
	current, err := s.sessions.current(ctx, adminToken)
	if err != nil {
		return nil, err
	}
	if current.IsImpersonation() {
		return nil, core.ErrNoNestedImpersonation
	}
	adminID := current.AccountID
	if err := s.admin.require(ctx, adminID, permission.ResourceUser, permission.ActionImpersonate); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccountByID(targetID); err != nil {
		return nil, notFoundAs("get account", err, core.ErrTargetNotFound)
	}
	if targetID == adminID {
		return nil, core.Errorf(core.KindForbidden, "you cannot impersonate yourself")
	}

	var (
		issued    *IssuedSession
		suspended *models.Session
	)
	err = s.store.WithAccountLock(ctx, targetID, func(tx *store.Store, target *models.Account) error {
		var err error
		issued, err = s.sessions.issue(tx, target, meta, issueOptions{
			lifetime:              s.lifetime,
			impersonatedBy:        adminID,
			impersonatorSessionID: current.ID,
		})
		if err != nil {
			return err
		}
		suspended, err = s.sessions.setSuspended(tx, current.ID, true)
		return err
	})
	if err != nil {
		return nil, notFoundAs("impersonate", err, core.ErrTargetNotFound)
	}

	s.sessions.created(issued)
	s.sessions.suspensionChanged(ctx, suspended)
	s.metrics.RecordImpersonation("start")
	log.Printf("[Impersonation] admin=%s started impersonating account=%s", adminID, targetID)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventImpersonationStarted,
		Severity:       models.SeverityWarning,
		ActorAccountID: adminID,
		ResourceType:   models.ResourceAccount,
		ResourceID:     targetID,
		Action:         "Started impersonation",
		Details:        models.AuditDetails{"session_id": issued.Session.ID},
		Success:        true,
	})
	return issued, nil
}

// StopImpersonating destroys the impersonation session and resumes the
// admin session it replaced. The resumed session is nil when it expired or
// was revoked in the meantime.
func (s *ImpersonationService) StopImpersonating(
	ctx context.Context,
	token string,
) (*models.Session, error) {
	current, err := s.sessions.current(ctx, token)
	if err != nil {
		return nil, err
	}
	if !current.IsImpersonation() {
		return nil, core.ErrNotImpersonating
	}

	var (
		deleted *models.Session
		resumed *models.Session
	)
	err = s.store.WithAccountLock(ctx, current.AccountID, func(tx *store.Store, _ *models.Account) error {
		var err error
		deleted, err = tx.DeleteSession(current.ID)
		if err != nil {
			return notFoundAs("delete session", err, core.ErrUnauthorized)
		}
		if current.ImpersonatorSessionID == "" {
			return nil
		}
		resumed, err = s.sessions.setSuspended(tx, current.ImpersonatorSessionID, false)
		if errors.Is(err, store.ErrRecordNotFound) {
			resumed = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, wrapErr("stop impersonating", err)
	}

	s.sessions.evict(ctx, []models.Session{*deleted}, ReasonImpersonationStop)
	if resumed != nil {
		s.sessions.suspensionChanged(ctx, resumed)
		if !resumed.IsActive(s.sessions.now()) {
			resumed = nil
		}
	}
	s.metrics.RecordImpersonation("stop")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:      models.EventImpersonationStopped,
		ActorAccountID: current.ImpersonatedBy,
		ResourceType:   models.ResourceAccount,
		ResourceID:     current.AccountID,
		Action:         "Stopped impersonation",
		Success:        true,
	})
	return resumed, nil
}
