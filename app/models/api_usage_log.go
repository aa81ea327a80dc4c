package models

import "time"

// APIUsageLog is one request made with an API key. Rows feed the daily quota
// and usage reporting; they are never updated.
type APIUsageLog struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	KeyID          string    `gorm:"type:varchar(40);not null;index:idx_api_usage_log_key_created,priority:1" json:"key_id"`
	Method         string    `gorm:"type:varchar(8);not null" json:"method"`
	Endpoint       string    `gorm:"type:varchar(255);not null" json:"endpoint"`
	StatusCode     int       `gorm:"not null" json:"status_code"`
	ResponseTimeMs int64     `gorm:"not null;default:0" json:"response_time_ms"`
	CreatedAt      time.Time `gorm:"not null;index:idx_api_usage_log_key_created,priority:2" json:"created_at"`
}

func (APIUsageLog) TableName() string {
	return "api_usage_log"
}

// AdminUsageKeyID marks usage rows written for admin-key requests.
const AdminUsageKeyID = "admin"
