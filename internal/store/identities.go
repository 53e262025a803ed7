package store

import (
	"github.com/go-authgate/accountgate/internal/models"
)

func (s *Store) CreateIdentityLink(link *models.IdentityLink) error {
	return s.db.Create(link).Error
}

// UpdateIdentityLink saves every field of the link
func (s *Store) UpdateIdentityLink(link *models.IdentityLink) error {
	return s.db.Save(link).Error
}

// GetIdentityLink finds the account's link for a provider
func (s *Store) GetIdentityLink(accountID, providerID string) (*models.IdentityLink, error) {
	var link models.IdentityLink
	err := s.db.Where("account_id = ? AND provider_id = ?", accountID, providerID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetIdentityByExternalID finds the link owning an external identity
func (s *Store) GetIdentityByExternalID(
	providerID, externalAccountID string,
) (*models.IdentityLink, error) {
	var link models.IdentityLink
	err := s.db.Where("provider_id = ? AND external_account_id = ?", providerID, externalAccountID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListIdentityLinks returns all sign-in methods of an account, oldest first
func (s *Store) ListIdentityLinks(accountID string) ([]models.IdentityLink, error) {
	var links []models.IdentityLink
	err := s.db.Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&links).Error
	return links, err
}

func (s *Store) CountIdentityLinks(accountID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.IdentityLink{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

func (s *Store) DeleteIdentityLink(id string) error {
	return s.db.Delete(&models.IdentityLink{}, "id = ?", id).Error
}
