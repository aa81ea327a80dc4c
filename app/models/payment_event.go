package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event types understood by the ledger. Processor-specific types are mapped onto
// these by the webhook verifier.
const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
	EventTypeRefundIssued     = "refund_issued"
	EventTypeTestPing         = "test_ping"
	EventTypeInformational    = "informational"
)

// PaymentEvent is one processor-reported occurrence. Rows are inserted exactly
// once per EventID and never updated or deleted.
type PaymentEvent struct {
	EventID          string            `gorm:"primaryKey;type:varchar(191);index:idx_payment_events_occurred_event,priority:2" json:"event_id"`
	EventType        string            `gorm:"type:varchar(32);not null;index" json:"event_type"`
	ProcessorType    string            `gorm:"type:varchar(100);not null;default:''" json:"processor_type"`
	AmountMinorUnits int64             `gorm:"not null;default:0" json:"amount_minor_units"`
	Currency         string            `gorm:"type:varchar(3);not null;default:''" json:"currency"`
	OccurredAt       time.Time         `gorm:"not null;index:idx_payment_events_occurred_event,priority:1" json:"occurred_at"`
	ReceivedAt       time.Time         `gorm:"not null" json:"received_at"`
	RawPayloadHash   string            `gorm:"type:char(64);not null" json:"raw_payload_hash"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
}

// IsRevenueAffecting reports whether events of the given type change the
// recorded balance.
func IsRevenueAffecting(eventType string) bool {
	switch eventType {
	case EventTypePaymentSucceeded, EventTypeRefundIssued:
		return true
	default:
		return false
	}
}

// SignedAmount returns the ledger contribution of the event: positive for
// payments, negative for refunds and zero for audit-only types.
func (e *PaymentEvent) SignedAmount() int64 {
	switch e.EventType {
	case EventTypePaymentSucceeded:
		return e.AmountMinorUnits
	case EventTypeRefundIssued:
		return -e.AmountMinorUnits
	default:
		return 0
	}
}
