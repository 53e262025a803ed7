package store

import (
	"strings"
	"time"

	"github.com/go-authgate/accountgate/internal/models"

	"gorm.io/gorm"
)

// CreateAccountWithIdentity inserts an account and its first sign-in method
// atomically.
func (s *Store) CreateAccountWithIdentity(
	account *models.Account,
	link *models.IdentityLink,
) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return tx.Create(link).Error
	})
}

func (s *Store) GetAccountByID(id string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByEmail looks up an account by its normalised email
func (s *Store) GetAccountByEmail(email string) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) GetAccountByName(name string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("name = ?", name).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccount saves every field of the account
func (s *Store) UpdateAccount(account *models.Account) error {
	return s.db.Save(account).Error
}

// ListAccounts returns a page of accounts, newest first. Search matches
// email or name.
func (s *Store) ListAccounts(
	params PaginationParams,
) ([]models.Account, PaginationResult, error) {
	query := s.db.Model(&models.Account{})
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var accounts []models.Account
	err := query.Order("created_at DESC").
		Scopes(params.scope).
		Find(&accounts).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}

	return accounts, CalculatePagination(total, params.Page, params.PageSize), nil
}

// CountAccounts returns the total number of accounts
func (s *Store) CountAccounts() (int64, error) {
	var count int64
	err := s.db.Model(&models.Account{}).Count(&count).Error
	return count, err
}

// CountBannedAccounts returns accounts whose ban is currently in force
func (s *Store) CountBannedAccounts() (int64, error) {
	var count int64
	err := s.db.Model(&models.Account{}).
		Where("banned = ? AND (ban_expires IS NULL OR ban_expires > ?)", true, now()).
		Count(&count).Error
	return count, err
}

// DeleteAccountCascade removes the account and everything hanging off it.
// Call it inside WithAccountLock; it returns the deleted sessions so callers
// can invalidate caches.
func (s *Store) DeleteAccountCascade(accountID string) ([]models.Session, error) {
	sessions, err := s.DeleteSessionsByAccount(accountID)
	if err != nil {
		return nil, err
	}
	for _, model := range []any{
		&models.IdentityLink{},
		&models.TwoFactorCredential{},
		&models.BackupCode{},
		&models.VerificationToken{},
		&models.Passkey{},
	} {
		if err := s.db.Where("account_id = ?", accountID).Delete(model).Error; err != nil {
			return nil, err
		}
	}
	if err := s.db.Where("id = ?", accountID).Delete(&models.Account{}).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// SetBan updates the ban fields of an account
func (s *Store) SetBan(accountID string, banned bool, reason string, expires *time.Time) error {
	return s.db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"banned":      banned,
			"ban_reason":  reason,
			"ban_expires": expires,
			"updated_at":  now(),
		}).Error
}
