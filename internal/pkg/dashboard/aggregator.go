// Package dashboard composes read-only reporting views over the ledger.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/cache"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
)

// SummaryCache stores summaries under a ledger version that ingestion bumps on
// every recorded event, so a cached summary is never older than the ledger.
type SummaryCache interface {
	LedgerVersion(ctx context.Context) (int64, error)
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Query struct {
	Range    ledger.TimeRange
	Currency string
	Bucket   ledger.Bucket
	Page     ledger.Page
}

type View struct {
	From         *time.Time            `json:"from,omitempty"`
	To           *time.Time            `json:"to,omitempty"`
	Currency     string                `json:"currency,omitempty"`
	Summary      *ledger.Aggregate     `json:"summary"`
	Transactions []models.PaymentEvent `json:"transactions"`
	NextCursor   string                `json:"next_cursor,omitempty"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// Aggregator never writes to the store. The cache is optional.
type Aggregator struct {
	store ledger.Store
	cache SummaryCache
	ttl   time.Duration
	now   func() time.Time
}

// DefaultSummaryTTL applies when New is given a non-positive ttl; cached
// summaries always expire.
const DefaultSummaryTTL = 30 * time.Second

func New(store ledger.Store, summaries SummaryCache, ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &Aggregator{store: store, cache: summaries, ttl: ttl, now: time.Now}
}

// BuildDashboard fetches the summary and one page of transactions
// concurrently.
func (a *Aggregator) BuildDashboard(ctx context.Context, q Query) (*View, error) {
	filter := ledger.Filter{TimeRange: q.Range, Currency: q.Currency, Bucket: q.Bucket}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		summary *ledger.Aggregate
		page    *ledger.TransactionPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = a.Summary(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		page, err = a.store.ListTransactions(gctx, q.Range, q.Page)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &View{
		Currency:     strings.ToUpper(strings.TrimSpace(q.Currency)),
		Summary:      summary,
		Transactions: page.Items,
		NextCursor:   page.NextCursor,
		GeneratedAt:  a.now().UTC(),
	}
	if !q.Range.From.IsZero() {
		from := q.Range.From.UTC()
		view.From = &from
	}
	if !q.Range.To.IsZero() {
		to := q.Range.To.UTC()
		view.To = &to
	}
	return view, nil
}

// Summary returns the aggregate for filter, from the cache when possible.
// Cache failures fall back to the store.
func (a *Aggregator) Summary(ctx context.Context, filter ledger.Filter) (*ledger.Aggregate, error) {
	if a.cache == nil {
		return a.store.SumRevenue(ctx, filter)
	}

	version, err := a.cache.LedgerVersion(ctx)
	if err != nil {
		log.Warnf("[Dashboard] cache unavailable, reading ledger: %v", err)
		return a.store.SumRevenue(ctx, filter)
	}
	key := cache.VersionedKey(version, summaryKey(filter))

	var cached ledger.Aggregate
	if ok, err := a.cache.GetJSON(ctx, key, &cached); err != nil {
		log.Warnf("[Dashboard] cache read failed: %v", err)
	} else if ok {
		return &cached, nil
	}

	agg, err := a.store.SumRevenue(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := a.cache.SetJSON(ctx, key, agg, a.ttl); err != nil {
		log.Warnf("[Dashboard] cache write failed: %v", err)
	}
	return agg, nil
}

// Rollup accompanies the first page of a transaction listing. Totals covers
// the requested range, Recent30d the 30 UTC days up to now.
type Rollup struct {
	Totals    *ledger.Aggregate    `json:"totals"`
	Recent30d *ledger.Aggregate    `json:"recent_30d"`
	BySource  []ledger.SourceTotal `json:"by_source"`
}

// TransactionRollup computes the three rollups concurrently. The aggregates
// go through the summary cache.
func (a *Aggregator) TransactionRollup(ctx context.Context, r ledger.TimeRange) (*Rollup, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := a.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -30)

	out := &Rollup{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Totals, err = a.Summary(gctx, ledger.Filter{TimeRange: r})
		return err
	})
	g.Go(func() error {
		var err error
		out.Recent30d, err = a.Summary(gctx, ledger.Filter{TimeRange: ledger.TimeRange{From: since}})
		return err
	})
	g.Go(func() error {
		var err error
		out.BySource, err = a.store.RollupBySource(gctx, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Transactions lists one page of payment events.
func (a *Aggregator) Transactions(ctx context.Context, r ledger.TimeRange, page ledger.Page) (*ledger.TransactionPage, error) {
	return a.store.ListTransactions(ctx, r, page)
}

// Event looks up a single payment event.
func (a *Aggregator) Event(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	return a.store.GetEvent(ctx, eventID)
}

func summaryKey(f ledger.Filter) string {
	bound := func(t time.Time) int64 {
		if t.IsZero() {
			return 0
		}
		return t.UTC().UnixNano()
	}
	return fmt.Sprintf("summary:%d:%d:%s:%s",
		bound(f.From), bound(f.To), strings.ToUpper(strings.TrimSpace(f.Currency)), f.Bucket)
}
