// Package ingest turns verified webhook deliveries into idempotent ledger
// writes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

// ErrRetryable marks a failure the sender should retry. It always wraps the
// underlying storage error.
var ErrRetryable = errors.New("ingest: retryable failure")

type Status int

const (
	Accepted Status = iota + 1
	DuplicateIgnored
	Rejected
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case DuplicateIgnored:
		return "duplicate_ignored"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Rejection reasons. Rejections are final; the sender should not retry.
const (
	ReasonNonPositiveAmount  = "non_positive_amount"
	ReasonCurrencyNotAllowed = "currency_not_allowed"
	ReasonInvalidEvent       = "invalid_event"
)

type Result struct {
	Status  Status
	Reason  string
	EventID string
}

// Listener is told about every event that is in the ledger after a delivery,
// duplicates included, so implementations must be idempotent. Listener errors
// are logged and never change the ingestion result.
type Listener interface {
	EventRecorded(ctx context.Context, event *webhook.VerifiedEvent) error
}

type Pipeline struct {
	store           ledger.Store
	currencies      map[string]struct{}
	maxAttempts     uint
	initialInterval time.Duration
	listeners       []Listener
}

func New(store ledger.Store, cfg config.LedgerConfig, listeners ...Listener) *Pipeline {
	p := &Pipeline{
		store:           store,
		maxAttempts:     cfg.RetryMaxAttempts,
		initialInterval: cfg.RetryInitialInterval,
		listeners:       listeners,
	}
	if p.maxAttempts == 0 {
		p.maxAttempts = 1
	}
	if p.initialInterval <= 0 {
		p.initialInterval = 100 * time.Millisecond
	}
	if len(cfg.Currencies) > 0 {
		p.currencies = make(map[string]struct{}, len(cfg.Currencies))
		for _, c := range cfg.Currencies {
			p.currencies[strings.ToUpper(c)] = struct{}{}
		}
	}
	return p
}

// Ingest records ev at most once. A nil error means the sender is done with
// this delivery, whatever the Status; ErrRetryable means it should try again.
func (p *Pipeline) Ingest(ctx context.Context, ev *webhook.VerifiedEvent) (Result, error) {
	if ev == nil {
		return Result{Status: Rejected, Reason: ReasonInvalidEvent}, nil
	}
	event := ev.Event
	if reason := p.check(&event); reason != "" {
		log.Warnf("[Ingest] rejected %s (%s): %s", event.EventID, event.ProcessorType, reason)
		return Result{Status: Rejected, Reason: reason, EventID: event.EventID}, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval

	appended, err := backoff.Retry(ctx, func() (ledger.AppendResult, error) {
		res, err := p.store.AppendEvent(ctx, &event)
		if err != nil && !errors.Is(err, ledger.ErrStorageUnavailable) {
			return 0, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(p.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warnf("[Ingest] append %s failed, retrying in %s: %v", event.EventID, next, err)
		}),
	)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidEvent) {
			return Result{Status: Rejected, Reason: ReasonInvalidEvent, EventID: event.EventID}, nil
		}
		log.Errorf("[Ingest] append %s gave up: %v", event.EventID, err)
		return Result{}, fmt.Errorf("%w: %w", ErrRetryable, err)
	}

	res := Result{Status: Accepted, EventID: event.EventID}
	if appended == ledger.AlreadyExists {
		log.Infof("[Ingest] duplicate delivery of %s ignored", event.EventID)
		res.Status = DuplicateIgnored
	} else {
		log.Infof("[Ingest] accepted %s type=%s amount=%d %s", event.EventID, event.EventType, event.AmountMinorUnits, event.Currency)
	}

	// A duplicate may be the retry of a commit whose acknowledgement was
	// lost, so listeners run for it too.
	p.notify(ctx, &webhook.VerifiedEvent{Event: event, Raw: ev.Raw})
	return res, nil
}

func (p *Pipeline) notify(ctx context.Context, ev *webhook.VerifiedEvent) {
	for _, l := range p.listeners {
		if err := l.EventRecorded(ctx, ev); err != nil {
			log.Warnf("[Ingest] listener failed for %s: %v", ev.Event.EventID, err)
		}
	}
}

func (p *Pipeline) check(event *models.PaymentEvent) string {
	if models.IsRevenueAffecting(event.EventType) && event.AmountMinorUnits <= 0 {
		return ReasonNonPositiveAmount
	}
	if p.currencies != nil && event.Currency != "" {
		if _, ok := p.currencies[event.Currency]; !ok {
			return ReasonCurrencyNotAllowed
		}
	}
	return ""
}
