package models

import "time"

// Revenue stream categories.
const (
	RevenueCategoryAPI        = "api"
	RevenueCategoryProduct    = "product"
	RevenueCategoryService    = "service"
	RevenueCategoryConsulting = "consulting"
)

// RevenueStream is a planned or running source of income with its current and
// potential monthly revenue. Unlike ledger rows, streams are edited in place.
type RevenueStream struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"type:varchar(200);not null" json:"name"`
	Category         string    `gorm:"type:varchar(32);not null;index" json:"category"`
	Currency         string    `gorm:"type:varchar(3);not null;index" json:"currency"`
	MonthlyRevenue   int64     `gorm:"not null;default:0" json:"monthly_revenue"`
	PotentialMonthly int64     `gorm:"not null;default:0" json:"potential_monthly"`
	GrowthRate       float64   `gorm:"not null;default:0" json:"growth_rate"`
	Notes            string    `gorm:"type:varchar(1000);not null;default:''" json:"notes"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
