package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// GormStore implements Store on a relational database. Idempotence rests on
// the payment_events primary key: the insert and its ledger entry share one
// transaction, so a duplicate delivery writes nothing.
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a ledger store. Every call is bounded by timeout.
func NewGormStore(db *gorm.DB, timeout time.Duration) *GormStore {
	return &GormStore{db: db, timeout: timeout}
}

func (s *GormStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GormStore) AppendEvent(ctx context.Context, event *models.PaymentEvent) (AppendResult, error) {
	if event == nil || strings.TrimSpace(event.EventID) == "" {
		return 0, fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := Appended
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result = AlreadyExists
			return nil
		}
		if !models.IsRevenueAffecting(event.EventType) {
			return nil
		}
		return tx.Create(&models.RevenueLedgerEntry{
			ID:               uuid.NewString(),
			EventID:          event.EventID,
			EventType:        event.EventType,
			AmountMinorUnits: event.SignedAmount(),
			Currency:         event.Currency,
			OccurredAt:       event.OccurredAt,
		}).Error
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return result, nil
}

func (s *GormStore) GetEvent(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var event models.PaymentEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &event, nil
}

// SumRevenue scans the matching ledger entries with a single SELECT, so the
// figures come from one consistent snapshot.
func (s *GormStore) SumRevenue(ctx context.Context, filter Filter) (*Aggregate, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).
		Model(&models.RevenueLedgerEntry{}).
		Select("currency", "amount_minor_units", "occurred_at")
	q = applyRange(q, "occurred_at", filter.TimeRange)
	if c := strings.ToUpper(strings.TrimSpace(filter.Currency)); c != "" {
		q = q.Where("currency = ?", c)
	}

	rows, err := q.Rows()
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	acc := newAccumulator(filter.Bucket)
	for rows.Next() {
		var (
			currency   string
			amount     int64
			occurredAt time.Time
		)
		if err := rows.Scan(&currency, &amount, &occurredAt); err != nil {
			return nil, unavailable(err)
		}
		acc.add(currency, amount, occurredAt)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return acc.result(), nil
}

// ListTransactions pages through payment events newest first. The keyset on
// (occurred_at, event_id) keeps pages stable while new events arrive.
func (s *GormStore) ListTransactions(ctx context.Context, r TimeRange, page Page) (*TransactionPage, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	size := page.size()

	var (
		at      time.Time
		eventID string
	)
	if page.Cursor != "" {
		var err error
		if at, eventID, err = decodeCursor(page.Cursor); err != nil {
			return nil, err
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := applyRange(s.db.WithContext(ctx).Model(&models.PaymentEvent{}), "occurred_at", r)
	if eventID != "" {
		q = q.Where("(occurred_at < ? OR (occurred_at = ? AND event_id < ?))", at, at, eventID)
	}

	var events []models.PaymentEvent
	err := q.
		Order("occurred_at DESC").
		Order("event_id DESC").
		Limit(size + 1).
		Find(&events).Error
	if err != nil {
		return nil, unavailable(err)
	}

	out := &TransactionPage{Items: events}
	if len(events) > size {
		last := events[size-1]
		out.Items = events[:size]
		out.NextCursor = encodeCursor(last.OccurredAt, last.EventID)
	}
	if out.Items == nil {
		out.Items = []models.PaymentEvent{}
	}
	return out, nil
}

// RollupBySource groups ledger entries by the processor event type that
// produced them, largest net first.
func (s *GormStore) RollupBySource(ctx context.Context, r TimeRange) ([]SourceTotal, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).
		Table("revenue_ledger_entries AS e").
		Select("p.processor_type AS source, e.currency AS currency, " +
			"COUNT(*) AS transactions, SUM(e.amount_minor_units) AS net").
		Joins("JOIN payment_events AS p ON p.event_id = e.event_id")
	q = applyRange(q, "e.occurred_at", r)

	out := []SourceTotal{}
	err := q.Group("p.processor_type, e.currency").
		Order("net DESC").
		Order("source").
		Order("currency").
		Scan(&out).Error
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// applyRange bounds column, which must be qualified when the query joins.
func applyRange(q *gorm.DB, column string, r TimeRange) *gorm.DB {
	if !r.From.IsZero() {
		q = q.Where(column+" >= ?", r.From.UTC())
	}
	if !r.To.IsZero() {
		q = q.Where(column+" < ?", r.To.UTC())
	}
	return q
}
