package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/testutil"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

var testLedgerConfig = config.LedgerConfig{
	RetryMaxAttempts:     3,
	RetryInitialInterval: time.Millisecond,
}

// flakyStore fails AppendEvent a fixed number of times before delegating.
type flakyStore struct {
	ledger.Store
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (s *flakyStore) AppendEvent(ctx context.Context, event *models.PaymentEvent) (ledger.AppendResult, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return 0, s.err
	}
	return s.Store.AppendEvent(ctx, event)
}

// lostAckStore commits the first append and then reports the storage as
// unavailable, like a client that times out after the database committed.
type lostAckStore struct {
	ledger.Store
	mu    sync.Mutex
	calls int
}

func (s *lostAckStore) AppendEvent(ctx context.Context, event *models.PaymentEvent) (ledger.AppendResult, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	res, err := s.Store.AppendEvent(ctx, event)
	if first && err == nil {
		return 0, fmt.Errorf("%w: context deadline exceeded", ledger.ErrStorageUnavailable)
	}
	return res, err
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (l *recordingListener) EventRecorded(_ context.Context, ev *webhook.VerifiedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Event.EventID)
	return l.err
}

func verified(id, eventType string, amount int64, currency string) *webhook.VerifiedEvent {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	return &webhook.VerifiedEvent{
		Event: models.PaymentEvent{
			EventID:          id,
			EventType:        eventType,
			ProcessorType:    "test",
			AmountMinorUnits: amount,
			Currency:         currency,
			OccurredAt:       now,
			ReceivedAt:       now,
			RawPayloadHash:   webhook.PayloadHash([]byte(id)),
		},
		Raw: []byte(`{"id":"` + id + `"}`),
	}
}

func newStore(t *testing.T) *ledger.GormStore {
	return ledger.NewGormStore(testutil.NewTestDB(t), 5*time.Second)
}

func TestIngestTwiceIsIdempotent(t *testing.T) {
	store := newStore(t)
	listener := &recordingListener{}
	p := New(store, testLedgerConfig, listener)
	ctx := context.Background()

	res, err := p.Ingest(ctx, verified("evt_1", models.EventTypePaymentSucceeded, 1000, "GBP"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)

	agg, err := store.SumRevenue(ctx, ledger.Filter{Currency: "GBP"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), agg.Net)

	res, err = p.Ingest(ctx, verified("evt_1", models.EventTypePaymentSucceeded, 1000, "GBP"))
	require.NoError(t, err)
	assert.Equal(t, DuplicateIgnored, res.Status)
	assert.Equal(t, "evt_1", res.EventID)

	agg, err = store.SumRevenue(ctx, ledger.Filter{Currency: "GBP"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), agg.Net)
	assert.Equal(t, int64(1), agg.Count)

	assert.Equal(t, []string{"evt_1", "evt_1"}, listener.events)
}

func TestIngestAuditOnlyEvents(t *testing.T) {
	store := newStore(t)
	p := New(store, testLedgerConfig)
	ctx := context.Background()

	res, err := p.Ingest(ctx, verified("evt_ping", models.EventTypeTestPing, 0, ""))
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)

	_, err = store.GetEvent(ctx, "evt_ping")
	require.NoError(t, err)

	agg, err := store.SumRevenue(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Zero(t, agg.Count)
}

func TestIngestRejections(t *testing.T) {
	cfg := testLedgerConfig
	cfg.Currencies = []string{"GBP", "eur"}
	p := New(newStore(t), cfg)

	tests := []struct {
		name   string
		event  *webhook.VerifiedEvent
		reason string
	}{
		{name: "zero payment", event: verified("evt_a", models.EventTypePaymentSucceeded, 0, "GBP"), reason: ReasonNonPositiveAmount},
		{name: "zero refund", event: verified("evt_b", models.EventTypeRefundIssued, 0, "GBP"), reason: ReasonNonPositiveAmount},
		{name: "currency outside allow-list", event: verified("evt_c", models.EventTypePaymentSucceeded, 100, "USD"), reason: ReasonCurrencyNotAllowed},
		{name: "missing id", event: verified("", models.EventTypePaymentSucceeded, 100, "EUR"), reason: ReasonInvalidEvent},
		{name: "nil event", event: nil, reason: ReasonInvalidEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Ingest(context.Background(), tt.event)
			require.NoError(t, err)
			assert.Equal(t, Rejected, res.Status)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}

	// Zero-amount audit events are fine.
	res, err := p.Ingest(context.Background(), verified("evt_d", models.EventTypePaymentFailed, 0, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)
}

func TestIngestRetriesTransientStorageFailures(t *testing.T) {
	store := &flakyStore{Store: newStore(t), failures: 2, err: ledger.ErrStorageUnavailable}
	p := New(store, testLedgerConfig)

	res, err := p.Ingest(context.Background(), verified("evt_retry", models.EventTypePaymentSucceeded, 500, "GBP"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)
	assert.Equal(t, 3, store.calls)
}

func TestIngestGivesUpWithRetryableError(t *testing.T) {
	store := &flakyStore{Store: newStore(t), failures: 10, err: ledger.ErrStorageUnavailable}
	listener := &recordingListener{}
	p := New(store, testLedgerConfig, listener)

	_, err := p.Ingest(context.Background(), verified("evt_down", models.EventTypePaymentSucceeded, 500, "GBP"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryable)
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
	assert.Equal(t, 3, store.calls)
	assert.Empty(t, listener.events)
}

func TestIngestDoesNotRetryPermanentErrors(t *testing.T) {
	store := &flakyStore{Store: newStore(t), failures: 10, err: errors.New("boom")}
	p := New(store, testLedgerConfig)

	_, err := p.Ingest(context.Background(), verified("evt_boom", models.EventTypePaymentSucceeded, 500, "GBP"))
	assert.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, 1, store.calls)
}

func TestIngestListenerFailureDoesNotChangeResult(t *testing.T) {
	listener := &recordingListener{err: errors.New("archive offline")}
	p := New(newStore(t), testLedgerConfig, listener)

	res, err := p.Ingest(context.Background(), verified("evt_l", models.EventTypePaymentSucceeded, 10, "GBP"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)
	assert.Equal(t, []string{"evt_l"}, listener.events)
}

func TestIngestNotifiesWhenCommitAckIsLost(t *testing.T) {
	base := newStore(t)
	store := &lostAckStore{Store: base}
	listener := &recordingListener{}
	p := New(store, testLedgerConfig, listener)
	ctx := context.Background()

	res, err := p.Ingest(ctx, verified("evt_ack", models.EventTypePaymentSucceeded, 700, "GBP"))
	require.NoError(t, err)
	assert.Equal(t, DuplicateIgnored, res.Status)
	assert.Equal(t, 2, store.calls)

	agg, err := base.SumRevenue(ctx, ledger.Filter{Currency: "GBP"})
	require.NoError(t, err)
	assert.Equal(t, int64(700), agg.Net)

	// The cache version bump and the archive still see the event.
	assert.Equal(t, []string{"evt_ack"}, listener.events)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "duplicate_ignored", DuplicateIgnored.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "unknown", Status(0).String())
}
