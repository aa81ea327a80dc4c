// Package ledger is the durable, append-only record of payment events and the
// revenue entries derived from them.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// AppendResult tells the caller whether AppendEvent wrote anything.
type AppendResult int

const (
	Appended AppendResult = iota + 1
	AlreadyExists
)

func (r AppendResult) String() string {
	switch r {
	case Appended:
		return "appended"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Store is the only gateway to ledger state. AppendEvent is the single write
// path; everything else is read-only.
type Store interface {
	AppendEvent(ctx context.Context, event *models.PaymentEvent) (AppendResult, error)
	GetEvent(ctx context.Context, eventID string) (*models.PaymentEvent, error)
	SumRevenue(ctx context.Context, filter Filter) (*Aggregate, error)
	ListTransactions(ctx context.Context, r TimeRange, page Page) (*TransactionPage, error)
	RollupBySource(ctx context.Context, r TimeRange) ([]SourceTotal, error)
}

// TimeRange is a half-open [From, To) interval on occurred_at. Zero values
// leave that side unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.To.After(r.From) {
		return fmt.Errorf("%w: 'to' must be after 'from'", ErrInvalidFilter)
	}
	return nil
}

// Bucket selects the time granularity of an aggregate breakdown.
type Bucket string

const (
	BucketNone  Bucket = ""
	BucketDay   Bucket = "day"
	BucketMonth Bucket = "month"
)

func ParseBucket(raw string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(raw))); b {
	case BucketNone, BucketDay, BucketMonth:
		return b, nil
	case "none":
		return BucketNone, nil
	default:
		return BucketNone, fmt.Errorf("%w: unknown bucket %q", ErrInvalidFilter, raw)
	}
}

// Start truncates t to the beginning of its bucket in UTC.
func (b Bucket) Start(t time.Time) time.Time {
	t = t.UTC()
	switch b {
	case BucketDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// Filter narrows SumRevenue to a time range and optionally one currency.
type Filter struct {
	TimeRange
	Currency string
	Bucket   Bucket
}

type CurrencyTotal struct {
	Currency string `json:"currency"`
	Net      int64  `json:"net"`
	Gross    int64  `json:"gross"`
	Refunded int64  `json:"refunded"`
	Count    int64  `json:"count"`
}

type BucketTotal struct {
	Start    time.Time `json:"start"`
	Currency string    `json:"currency"`
	Net      int64     `json:"net"`
	Count    int64     `json:"count"`
}

// Aggregate is a rollup over revenue ledger entries, all amounts in minor
// units. The top-level figures mix currencies unless the filter names one;
// ByCurrency is always split.
type Aggregate struct {
	Net        int64           `json:"net"`
	Gross      int64           `json:"gross"`
	Refunded   int64           `json:"refunded"`
	Count      int64           `json:"count"`
	ByCurrency []CurrencyTotal `json:"by_currency"`
	ByBucket   []BucketTotal   `json:"by_bucket,omitempty"`
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page requests one slice of a transaction listing. Cursor is the opaque
// value returned as NextCursor by the previous page.
type Page struct {
	Cursor string
	Size   int
}

func (p Page) size() int {
	switch {
	case p.Size <= 0:
		return DefaultPageSize
	case p.Size > MaxPageSize:
		return MaxPageSize
	default:
		return p.Size
	}
}

// SourceTotal is the net of all ledger entries from one processor event type
// in one currency.
type SourceTotal struct {
	Source       string `json:"source"`
	Currency     string `json:"currency"`
	Transactions int64  `json:"transactions"`
	Net          int64  `json:"net"`
}

type TransactionPage struct {
	Items      []models.PaymentEvent `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}
