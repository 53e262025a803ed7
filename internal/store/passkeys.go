package store

import (
	"github.com/go-authgate/accountgate/internal/models"
)

func (s *Store) CreatePasskey(passkey *models.Passkey) error {
	return s.db.Create(passkey).Error
}

func (s *Store) GetPasskey(id string) (*models.Passkey, error) {
	var passkey models.Passkey
	if err := s.db.Where("id = ?", id).First(&passkey).Error; err != nil {
		return nil, err
	}
	return &passkey, nil
}

func (s *Store) GetPasskeyByCredentialID(credentialID string) (*models.Passkey, error) {
	var passkey models.Passkey
	if err := s.db.Where("credential_id = ?", credentialID).First(&passkey).Error; err != nil {
		return nil, err
	}
	return &passkey, nil
}

// ListPasskeys returns the account's passkeys, newest first
func (s *Store) ListPasskeys(accountID string) ([]models.Passkey, error) {
	var passkeys []models.Passkey
	err := s.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&passkeys).Error
	return passkeys, err
}

// UpdatePasskeyCounter stores the latest signature counter
func (s *Store) UpdatePasskeyCounter(id string, counter uint32) error {
	return s.db.Model(&models.Passkey{}).Where("id = ?", id).Update("counter", counter).Error
}

func (s *Store) DeletePasskey(id string) error {
	return s.db.Delete(&models.Passkey{}, "id = ?", id).Error
}
