package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// APIKeyRepository defines the database operations on API keys. Lookups
// return gorm.ErrRecordNotFound for unknown keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, keyID string) (*models.APIKey, error)
	GetBySecretHash(ctx context.Context, hash string) (*models.APIKey, error)
	List(ctx context.Context, offset, limit int) ([]models.APIKey, error)
	// Revoke moves an active key to revoked. It reports false when the key was
	// already revoked.
	Revoke(ctx context.Context, keyID string, at time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

// UsageRepository records requests made with API keys.
type UsageRepository interface {
	Record(ctx context.Context, entry *models.APIUsageLog) error
	CountSince(ctx context.Context, keyID string, since time.Time) (int64, error)
}

// RevenueStreamRepository defines the database operations on revenue streams.
// Lookups and updates return gorm.ErrRecordNotFound for unknown ids.
type RevenueStreamRepository interface {
	Create(ctx context.Context, stream *models.RevenueStream) error
	GetByID(ctx context.Context, id uint64) (*models.RevenueStream, error)
	List(ctx context.Context, offset, limit int) ([]models.RevenueStream, error)
	Update(ctx context.Context, id uint64, fields map[string]any) error
	TotalsByCurrency(ctx context.Context, currency string) ([]StreamTotals, error)
}

// StreamTotals sums the streams of one currency.
type StreamTotals struct {
	Currency         string
	Streams          int64
	MonthlyRevenue   int64
	PotentialMonthly int64
	GrowthRateSum    float64
}

// Repositories struct holds all repository instances
type Repositories struct {
	APIKey        APIKeyRepository
	Usage         UsageRepository
	RevenueStream RevenueStreamRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		APIKey:        NewAPIKeyRepository(db),
		Usage:         NewUsageRepository(db),
		RevenueStream: NewRevenueStreamRepository(db),
	}
}
