package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/go-authgate/accountgate/internal/core"
	"github.com/go-authgate/accountgate/internal/models"
	"github.com/go-authgate/accountgate/internal/store"
	"github.com/go-authgate/accountgate/internal/util"

	"github.com/google/uuid"
)

const sessionCacheKeyPrefix = "session:"

// Session invalidation reasons
const (
	ReasonSignOut           = "sign_out"
	ReasonRevoked           = "revoked"
	ReasonRevokeOthers      = "revoke_others"
	ReasonPasswordReset     = "password_reset"
	ReasonPasswordChange    = "password_change"
	ReasonBanned            = "banned"
	ReasonAccountDeleted    = "account_deleted"
	ReasonAdminRevoke       = "admin_revoke"
	ReasonImpersonationStop = "impersonation_stop"
)

// SessionEventType names what happened to the sessions in a SessionEvent
type SessionEventType string

const (
	SessionCreated   SessionEventType = "created"
	SessionRevoked   SessionEventType = "revoked"
	SessionSuspended SessionEventType = "suspended"
	SessionResumed   SessionEventType = "resumed"
	AccountChanged   SessionEventType = "account_changed"
)

// SessionEvent is delivered to subscribers after a mutation commits
type SessionEvent struct {
	Type       SessionEventType
	AccountID  string
	SessionIDs []string
	Reason     string
	// Age of the revoked sessions, oldest first; only set for SessionRevoked
	Ages []time.Duration
}

// SessionMeta describes the client a session is issued to
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// IssuedSession is a freshly created session. Token is the raw bearer token
// and is never stored or returned again.
type IssuedSession struct {
	Token   string
	Session *models.Session
}

type issueOptions struct {
	lifetime              time.Duration
	impersonatedBy        string
	impersonatorSessionID string
}

// SessionEntry is what the session cache stores per token hash
type SessionEntry struct {
	Session models.Session `json:"session"`
	Account models.Account `json:"account"`
}

// SessionService is the registry of signed-in browser contexts. Reads go
// through an optional cache that every mutation invalidates explicitly.
type SessionService struct {
	store    *store.Store
	cache    core.Cache[SessionEntry]
	cacheTTL time.Duration
	lifetime time.Duration
	now      func() time.Time

	// evictions counts cache evictions. A lookup that sees it move while
	// fetching drops what it just cached, since the row may be gone.
	evictions atomic.Uint64

	subMu       sync.RWMutex
	subscribers map[int]func(SessionEvent)
	nextSubID   int
}

// NewSessionService creates the registry. cache may be nil.
func NewSessionService(
	s *store.Store,
	cache core.Cache[SessionEntry],
	cacheTTL time.Duration,
	lifetime time.Duration,
) *SessionService {
	return &SessionService{
		store:       s,
		cache:       cache,
		cacheTTL:    cacheTTL,
		lifetime:    lifetime,
		now:         utcNow,
		subscribers: make(map[int]func(SessionEvent)),
	}
}

// Subscribe registers fn for every committed session mutation. The returned
// function removes the subscription.
func (s *SessionService) Subscribe(fn func(SessionEvent)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *SessionService) publish(ev SessionEvent) {
	s.subMu.RLock()
	subs := make([]func(SessionEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// issue inserts a session for account inside the caller's transaction.
// Banned accounts are rejected.
func (s *SessionService) issue(
	tx *store.Store,
	account *models.Account,
	meta SessionMeta,
	opts issueOptions,
) (*IssuedSession, error) {
	now := s.now()
	if account.IsBanned(now) {
		return nil, core.ErrAccountBanned
	}

	token, err := util.RandomToken(32)
	if err != nil {
		return nil, core.Internal("failed to generate session token", err)
	}
	lifetime := opts.lifetime
	if lifetime <= 0 {
		lifetime = s.lifetime
	}

	session := &models.Session{
		ID:                    uuid.New().String(),
		TokenHash:             util.HashToken(token),
		AccountID:             account.ID,
		UserAgent:             truncate(meta.UserAgent, 500),
		IPAddress:             meta.IPAddress,
		ImpersonatedBy:        opts.impersonatedBy,
		ImpersonatorSessionID: opts.impersonatorSessionID,
		CreatedAt:             now,
		UpdatedAt:             now,
		ExpiresAt:             now.Add(lifetime),
	}
	if err := tx.CreateSession(session); err != nil {
		return nil, core.Internal("failed to create session", err)
	}
	return &IssuedSession{Token: token, Session: session}, nil
}

// created notifies subscribers about sessions issued by a committed transaction
func (s *SessionService) created(issued *IssuedSession) {
	s.publish(SessionEvent{
		Type:       SessionCreated,
		AccountID:  issued.Session.AccountID,
		SessionIDs: []string{issued.Session.ID},
	})
}

// CreateSession signs the account in
func (s *SessionService) CreateSession(
	ctx context.Context,
	accountID string,
	meta SessionMeta,
) (*IssuedSession, error) {
	var issued *IssuedSession
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, account *models.Account) error {
		var err error
		issued, err = s.issue(tx, account, meta, issueOptions{})
		return err
	})
	if err != nil {
		return nil, notFoundAs("create session", err, core.ErrNotFound)
	}
	s.created(issued)
	return issued, nil
}

func (s *SessionService) cacheKey(tokenHash string) string {
	return sessionCacheKeyPrefix + tokenHash
}

func (s *SessionService) fetch(ctx context.Context, tokenHash string) (SessionEntry, error) {
	session, err := s.store.GetSessionByTokenHash(tokenHash)
	if err != nil {
		return SessionEntry{}, err
	}
	account, err := s.store.GetAccountByID(session.AccountID)
	if err != nil {
		return SessionEntry{}, err
	}
	return SessionEntry{Session: *session, Account: *account}, nil
}

func (s *SessionService) lookup(ctx context.Context, tokenHash string) (SessionEntry, error) {
	if s.cache == nil {
		return s.fetch(ctx, tokenHash)
	}
	key := s.cacheKey(tokenHash)
	generation := s.evictions.Load()
	entry, err := s.cache.GetWithFetch(ctx, key, s.cacheTTL,
		func(ctx context.Context, _ string) (SessionEntry, error) {
			return s.fetch(ctx, tokenHash)
		})
	if err != nil || s.evictions.Load() == generation {
		return entry, err
	}

	// A revocation raced this lookup and may have run between the fetch and
	// the cache write. Drop the entry and answer from the database.
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Printf("[Session] failed to drop raced cache entry: %v", err)
	}
	return s.fetch(ctx, tokenHash)
}

// GetSession resolves a bearer token. Expired, suspended and missing
// sessions, and sessions of banned accounts, are all reported as
// ErrUnauthorized.
func (s *SessionService) GetSession(
	ctx context.Context,
	token string,
) (*models.Session, *models.Account, error) {
	if token == "" {
		return nil, nil, core.ErrUnauthorized
	}
	entry, err := s.lookup(ctx, util.HashToken(token))
	if err != nil {
		return nil, nil, notFoundAs("get session", err, core.ErrUnauthorized)
	}

	now := s.now()
	if !entry.Session.IsActive(now) || entry.Account.IsBanned(now) {
		return nil, nil, core.ErrUnauthorized
	}
	return &entry.Session, &entry.Account, nil
}

// current resolves the token and reloads the session row, which carries
// fields the cache does not keep.
func (s *SessionService) current(ctx context.Context, token string) (*models.Session, error) {
	cached, _, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	session, err := s.store.GetSessionByID(cached.ID)
	if err != nil {
		s.evictHashes(ctx, util.HashToken(token))
		return nil, notFoundAs("get session", err, core.ErrUnauthorized)
	}
	return session, nil
}

// ListSessions returns the account's unexpired sessions, most recent first
func (s *SessionService) ListSessions(ctx context.Context, accountID string) ([]models.Session, error) {
	sessions, err := s.store.ListActiveSessions(accountID, s.now())
	if err != nil {
		return nil, wrapErr("list sessions", err)
	}
	return sessions, nil
}

// RevokeSession deletes targetID on behalf of the holder of currentToken.
// The target must belong to the same account. Reports whether the caller
// revoked its own session, in which case it is now signed out.
func (s *SessionService) RevokeSession(
	ctx context.Context,
	currentToken, targetID string,
) (bool, error) {
	current, err := s.current(ctx, currentToken)
	if err != nil {
		return false, err
	}

	var deleted *models.Session
	err = s.store.WithAccountLock(ctx, current.AccountID, func(tx *store.Store, _ *models.Account) error {
		target, err := tx.GetSessionByID(targetID)
		if err != nil {
			return notFoundAs("get session", err, core.ErrNotFound)
		}
		if target.AccountID != current.AccountID {
			return core.ErrForbidden
		}
		deleted, err = tx.DeleteSession(target.ID)
		return notFoundAs("delete session", err, core.ErrNotFound)
	})
	if err != nil {
		return false, wrapErr("revoke session", err)
	}

	s.evict(ctx, []models.Session{*deleted}, ReasonRevoked)
	return deleted.ID == current.ID, nil
}

// RevokeOtherSessions deletes every other session of the account that
// existed when the call was issued. A session created concurrently, after
// that instant, survives.
func (s *SessionService) RevokeOtherSessions(ctx context.Context, currentToken string) (int, error) {
	cutoff := s.now()

	current, err := s.current(ctx, currentToken)
	if err != nil {
		return 0, err
	}

	var deleted []models.Session
	err = s.store.WithAccountLock(ctx, current.AccountID, func(tx *store.Store, _ *models.Account) error {
		var err error
		deleted, err = tx.DeleteOtherSessionsCreatedBy(current.AccountID, current.ID, cutoff)
		return err
	})
	if err != nil {
		return 0, wrapErr("revoke other sessions", err)
	}

	s.evict(ctx, deleted, ReasonRevokeOthers)
	return len(deleted), nil
}

// RevokeAllSessions deletes every session of the account
func (s *SessionService) RevokeAllSessions(
	ctx context.Context,
	accountID, reason string,
) (int, error) {
	var deleted []models.Session
	err := s.store.WithAccountLock(ctx, accountID, func(tx *store.Store, _ *models.Account) error {
		var err error
		deleted, err = tx.DeleteSessionsByAccount(accountID)
		return err
	})
	if err != nil {
		return 0, notFoundAs("revoke sessions", err, core.ErrTargetNotFound)
	}

	s.evict(ctx, deleted, reason)
	return len(deleted), nil
}

// SignOut deletes the session behind token. Signing out of an impersonation
// session also ends the suspended admin session it replaced.
func (s *SessionService) SignOut(ctx context.Context, token string) error {
	current, err := s.current(ctx, token)
	if err != nil {
		return err
	}

	var deleted []models.Session
	err = s.store.WithAccountLock(ctx, current.AccountID, func(tx *store.Store, _ *models.Account) error {
		session, err := tx.DeleteSession(current.ID)
		if err != nil {
			return notFoundAs("delete session", err, core.ErrUnauthorized)
		}
		deleted = append(deleted, *session)
		if current.ImpersonatorSessionID != "" {
			admin, err := tx.DeleteSession(current.ImpersonatorSessionID)
			if err == nil {
				deleted = append(deleted, *admin)
			} else if !errors.Is(err, store.ErrRecordNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr("sign out", err)
	}

	s.evict(ctx, deleted, ReasonSignOut)
	return nil
}

// evict drops deleted sessions from the cache and notifies subscribers
func (s *SessionService) evict(ctx context.Context, deleted []models.Session, reason string) {
	if len(deleted) == 0 {
		return
	}

	now := s.now()
	byAccount := make(map[string]*SessionEvent)
	hashes := make([]string, 0, len(deleted))
	for _, session := range deleted {
		hashes = append(hashes, session.TokenHash)
		ev, ok := byAccount[session.AccountID]
		if !ok {
			ev = &SessionEvent{Type: SessionRevoked, AccountID: session.AccountID, Reason: reason}
			byAccount[session.AccountID] = ev
		}
		ev.SessionIDs = append(ev.SessionIDs, session.ID)
		ev.Ages = append(ev.Ages, now.Sub(session.CreatedAt))
	}
	s.evictHashes(ctx, hashes...)

	for _, ev := range byAccount {
		s.publish(*ev)
	}
}

func (s *SessionService) evictHashes(ctx context.Context, hashes ...string) {
	if s.cache == nil {
		return
	}
	s.evictions.Add(1)
	for _, h := range hashes {
		if err := s.cache.Delete(ctx, s.cacheKey(h)); err != nil {
			log.Printf("[Session] failed to evict cache entry: %v", err)
		}
	}
}

// setSuspended flips the suspended flag inside the caller's transaction
func (s *SessionService) setSuspended(tx *store.Store, id string, suspended bool) (*models.Session, error) {
	if err := tx.SetSessionSuspended(id, suspended); err != nil {
		return nil, err
	}
	return tx.GetSessionByID(id)
}

// suspensionChanged evicts and notifies after setSuspended committed
func (s *SessionService) suspensionChanged(ctx context.Context, session *models.Session) {
	s.evictHashes(ctx, session.TokenHash)
	ev := SessionEvent{
		Type:       SessionResumed,
		AccountID:  session.AccountID,
		SessionIDs: []string{session.ID},
	}
	if session.Suspended {
		ev.Type = SessionSuspended
	}
	s.publish(ev)
}

// InvalidateAccount drops every cached session of the account so changed
// account fields (ban, role, profile) are seen on the next request.
func (s *SessionService) InvalidateAccount(ctx context.Context, accountID string) {
	if s.cache != nil {
		sessions, err := s.store.ListActiveSessions(accountID, time.Time{})
		if err != nil {
			log.Printf("[Session] failed to list sessions of %s for invalidation: %v", accountID, err)
		}
		hashes := make([]string, len(sessions))
		for i := range sessions {
			hashes[i] = sessions[i].TokenHash
		}
		s.evictHashes(ctx, hashes...)
	}
	s.publish(SessionEvent{Type: AccountChanged, AccountID: accountID})
}

// NewSessionMetricsSubscriber records session counters for every event
func NewSessionMetricsSubscriber(rec core.Recorder) func(SessionEvent) {
	return func(ev SessionEvent) {
		switch ev.Type {
		case SessionCreated:
			for range ev.SessionIDs {
				rec.RecordSessionCreated()
			}
		case SessionRevoked:
			rec.RecordSessionInvalidated(ev.Reason, len(ev.SessionIDs))
			if ev.Reason == ReasonSignOut {
				for _, age := range ev.Ages {
					rec.RecordLogout(age)
				}
			}
		}
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
