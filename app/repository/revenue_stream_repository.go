package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// revenueStreamRepository implements the RevenueStreamRepository interface
type revenueStreamRepository struct {
	db *gorm.DB
}

// NewRevenueStreamRepository creates a new revenue stream repository instance
func NewRevenueStreamRepository(db *gorm.DB) RevenueStreamRepository {
	return &revenueStreamRepository{db: db}
}

func (r *revenueStreamRepository) Create(ctx context.Context, stream *models.RevenueStream) error {
	if stream == nil {
		return errors.New("revenue stream is nil")
	}
	return r.db.WithContext(ctx).Create(stream).Error
}

func (r *revenueStreamRepository) GetByID(ctx context.Context, id uint64) (*models.RevenueStream, error) {
	var stream models.RevenueStream
	if err := r.db.WithContext(ctx).First(&stream, id).Error; err != nil {
		return nil, err
	}
	return &stream, nil
}

func (r *revenueStreamRepository) List(ctx context.Context, offset, limit int) ([]models.RevenueStream, error) {
	var streams []models.RevenueStream
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&streams).Error
	return streams, err
}

func (r *revenueStreamRepository) Update(ctx context.Context, id uint64, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.RevenueStream{ID: id}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the values did not change.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *revenueStreamRepository) TotalsByCurrency(ctx context.Context, currency string) ([]StreamTotals, error) {
	q := r.db.WithContext(ctx).
		Model(&models.RevenueStream{}).
		Select("currency, COUNT(*) AS streams, " +
			"COALESCE(SUM(monthly_revenue), 0) AS monthly_revenue, " +
			"COALESCE(SUM(potential_monthly), 0) AS potential_monthly, " +
			"COALESCE(SUM(growth_rate), 0) AS growth_rate_sum")
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" {
		q = q.Where("currency = ?", c)
	}

	var out []StreamTotals
	err := q.Group("currency").Order("currency").Scan(&out).Error
	return out, err
}
