package store

import (
	"github.com/go-authgate/accountgate/internal/models"

	"github.com/google/uuid"
)

// GetTwoFactor returns the account's TOTP credential or ErrRecordNotFound
func (s *Store) GetTwoFactor(accountID string) (*models.TwoFactorCredential, error) {
	var cred models.TwoFactorCredential
	if err := s.db.Where("account_id = ?", accountID).First(&cred).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

// SaveTwoFactor inserts or updates the credential
func (s *Store) SaveTwoFactor(cred *models.TwoFactorCredential) error {
	return s.db.Save(cred).Error
}

// DeleteTwoFactor discards the credential and every backup code
func (s *Store) DeleteTwoFactor(accountID string) error {
	if err := s.db.Where("account_id = ?", accountID).
		Delete(&models.BackupCode{}).Error; err != nil {
		return err
	}
	return s.db.Where("account_id = ?", accountID).
		Delete(&models.TwoFactorCredential{}).Error
}

// ReplaceBackupCodes swaps the account's backup codes for the given hashes
func (s *Store) ReplaceBackupCodes(accountID string, hashes []string) error {
	if err := s.db.Where("account_id = ?", accountID).
		Delete(&models.BackupCode{}).Error; err != nil {
		return err
	}
	if len(hashes) == 0 {
		return nil
	}
	codes := make([]models.BackupCode, len(hashes))
	for i, h := range hashes {
		codes[i] = models.BackupCode{
			ID:        uuid.New().String(),
			AccountID: accountID,
			CodeHash:  h,
			CreatedAt: now(),
		}
	}
	return s.db.Create(&codes).Error
}

// ConsumeBackupCode deletes a matching code and reports whether one existed
func (s *Store) ConsumeBackupCode(accountID, codeHash string) (bool, error) {
	result := s.db.Where("account_id = ? AND code_hash = ?", accountID, codeHash).
		Delete(&models.BackupCode{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *Store) CountBackupCodes(accountID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.BackupCode{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}
