package models

import "time"

// RevenueLedgerEntry is the append-only balance row derived one-to-one from a
// revenue-affecting PaymentEvent. Corrections are new offsetting entries.
type RevenueLedgerEntry struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID          string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	EventType        string    `gorm:"type:varchar(32);not null" json:"event_type"`
	AmountMinorUnits int64     `gorm:"not null" json:"amount_minor_units"`
	Currency         string    `gorm:"type:varchar(3);not null;index:idx_revenue_ledger_entries_currency_occurred,priority:1" json:"currency"`
	OccurredAt       time.Time `gorm:"not null;index;index:idx_revenue_ledger_entries_currency_occurred,priority:2" json:"occurred_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
