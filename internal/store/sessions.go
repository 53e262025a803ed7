package store

import (
	"time"

	"github.com/go-authgate/accountgate/internal/models"
)

func (s *Store) CreateSession(session *models.Session) error {
	return s.db.Create(session).Error
}

// GetSessionByTokenHash returns the session regardless of expiry; callers
// decide liveness.
func (s *Store) GetSessionByTokenHash(tokenHash string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("token_hash = ?", tokenHash).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) GetSessionByID(id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ListActiveSessions returns the account's unexpired sessions, most recent first
func (s *Store) ListActiveSessions(accountID string, at time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.Where("account_id = ? AND expires_at > ?", accountID, at).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// DeleteSession removes one session and returns it
func (s *Store) DeleteSession(id string) (*models.Session, error) {
	deleted, err := s.deleteSessionsWhere("id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, ErrRecordNotFound
	}
	return &deleted[0], nil
}

// DeleteSessionsByAccount removes every session of the account and returns them
func (s *Store) DeleteSessionsByAccount(accountID string) ([]models.Session, error) {
	return s.deleteSessionsWhere("account_id = ?", accountID)
}

// DeleteOtherSessionsCreatedBy removes the account's sessions, except keepID,
// whose creation time is not after cutoff. Sessions created after the cutoff
// (a concurrent sign-in on another device) survive.
func (s *Store) DeleteOtherSessionsCreatedBy(
	accountID, keepID string,
	cutoff time.Time,
) ([]models.Session, error) {
	return s.deleteSessionsWhere(
		"account_id = ? AND id <> ? AND created_at <= ?",
		accountID, keepID, cutoff,
	)
}

// deleteSessionsWhere loads then deletes the matching rows by primary key so
// the caller learns which token hashes to evict. Run it inside a transaction
// when the result must be exact.
func (s *Store) deleteSessionsWhere(query string, args ...any) ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Where(query, args...).Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	ids := make([]string, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}
	if err := s.db.Where("id IN ?", ids).Delete(&models.Session{}).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// SetSessionSuspended toggles the suspended flag
func (s *Store) SetSessionSuspended(id string, suspended bool) error {
	return s.db.Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"suspended": suspended, "updated_at": now()}).Error
}

// CountActiveSessions counts unexpired, unsuspended sessions
func (s *Store) CountActiveSessions() (int64, error) {
	var count int64
	err := s.db.Model(&models.Session{}).
		Where("expires_at > ? AND suspended = ?", now(), false).
		Count(&count).Error
	return count, err
}

// DeleteExpiredSessions removes sessions that expired before cutoff
func (s *Store) DeleteExpiredSessions(cutoff time.Time) (int64, error) {
	result := s.db.Where("expires_at < ?", cutoff).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
