package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// apiKeyRepository implements the APIKeyRepository interface
type apiKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository creates a new API key repository instance
func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key == nil {
		return errors.New("api key is nil")
	}
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *apiKeyRepository) GetByID(ctx context.Context, keyID string) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).Where("key_id = ?", keyID).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepository) GetBySecretHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).Where("secret_hash = ?", hash).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepository) List(ctx context.Context, offset, limit int) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("key_id").
		Offset(offset).
		Limit(limit).
		Find(&keys).Error
	return keys, err
}

func (r *apiKeyRepository) Revoke(ctx context.Context, keyID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("key_id = ? AND status = ?", keyID, models.APIKeyStatusActive).
		Updates(map[string]any{
			"status":     models.APIKeyStatusRevoked,
			"revoked_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// Nothing changed: either unknown or already revoked.
	if _, err := r.GetByID(ctx, keyID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("key_id = ?", keyID).
		UpdateColumn("last_used_at", at).Error
}
