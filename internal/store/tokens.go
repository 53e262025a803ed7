package store

import (
	"time"

	"github.com/go-authgate/accountgate/internal/models"
)

func (s *Store) CreateVerificationToken(token *models.VerificationToken) error {
	return s.db.Create(token).Error
}

// GetVerificationToken finds a token by purpose and hash
func (s *Store) GetVerificationToken(purpose, tokenHash string) (*models.VerificationToken, error) {
	var token models.VerificationToken
	err := s.db.Where("purpose = ? AND token_hash = ?", purpose, tokenHash).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ConsumeVerificationToken marks the token used. Returns
// ErrTokenAlreadyConsumed if another request got there first.
func (s *Store) ConsumeVerificationToken(id string, at time.Time) error {
	result := s.db.Model(&models.VerificationToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenAlreadyConsumed
	}
	return nil
}

// DeleteVerificationTokens removes every outstanding token of the given
// purpose for the account.
func (s *Store) DeleteVerificationTokens(accountID, purpose string) error {
	return s.db.Where("account_id = ? AND purpose = ? AND consumed_at IS NULL", accountID, purpose).
		Delete(&models.VerificationToken{}).Error
}
