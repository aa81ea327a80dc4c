package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage log repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Record(ctx context.Context, entry *models.APIUsageLog) error {
	if entry == nil {
		return errors.New("usage entry is nil")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *usageRepository) CountSince(ctx context.Context, keyID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.APIUsageLog{}).
		Where("key_id = ? AND created_at >= ?", keyID, since.UTC()).
		Count(&count).Error
	return count, err
}
