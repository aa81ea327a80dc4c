package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v81"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

// Processor event types with a ledger meaning. Anything else is recorded as
// informational.
const (
	ProcessorPaymentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)
	ProcessorPaymentFailed    = string(stripe.EventTypePaymentIntentPaymentFailed)
	ProcessorCheckoutComplete = string(stripe.EventTypeCheckoutSessionCompleted)
	ProcessorRefundCreated    = "refund.created"
	ProcessorPing             = "ping"
)

var validate = validator.New()

// candidate is the validated shape of a decoded delivery.
type candidate struct {
	EventID       string    `validate:"required,max=191,printascii"`
	ProcessorType string    `validate:"required,max=100"`
	EventType     string    `validate:"required"`
	Amount        int64     `validate:"gte=0"`
	Currency      string    `validate:"omitempty,len=3,alpha"`
	OccurredAt    time.Time `validate:"required"`
}

// MapEventType translates a processor event type into a ledger event type.
func MapEventType(processorType string) string {
	switch processorType {
	case ProcessorPaymentSucceeded, ProcessorCheckoutComplete:
		return models.EventTypePaymentSucceeded
	case ProcessorPaymentFailed:
		return models.EventTypePaymentFailed
	case ProcessorRefundCreated:
		return models.EventTypeRefundIssued
	case ProcessorPing:
		return models.EventTypeTestPing
	default:
		return models.EventTypeInformational
	}
}

func parsePayload(raw []byte) (*models.PaymentEvent, error) {
	var ev stripe.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	c := candidate{
		EventID:       strings.TrimSpace(ev.ID),
		ProcessorType: string(ev.Type),
		EventType:     MapEventType(string(ev.Type)),
	}
	if ev.Created > 0 {
		c.OccurredAt = time.Unix(ev.Created, 0).UTC()
	}

	meta := datatypes.JSONMap{}
	if ev.Data != nil && len(ev.Data.Raw) > 0 && c.EventType != models.EventTypeInformational {
		if err := extractObject(string(ev.Type), ev.Data.Raw, &c, meta); err != nil {
			return nil, err
		}
	}
	c.Currency = strings.ToUpper(c.Currency)

	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	switch c.EventType {
	case models.EventTypePaymentSucceeded, models.EventTypePaymentFailed, models.EventTypeRefundIssued:
		if c.Currency == "" {
			return nil, errors.New("validate event: currency is required")
		}
	}

	event := &models.PaymentEvent{
		EventID:          c.EventID,
		EventType:        c.EventType,
		ProcessorType:    c.ProcessorType,
		AmountMinorUnits: c.Amount,
		Currency:         c.Currency,
		OccurredAt:       c.OccurredAt,
	}
	if len(meta) > 0 {
		event.Metadata = meta
	}
	return event, nil
}

// extractObject reads amount and currency from data.object using the typed
// processor resources.
func extractObject(processorType string, raw json.RawMessage, c *candidate, meta datatypes.JSONMap) error {
	switch processorType {
	case ProcessorPaymentSucceeded, ProcessorPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		c.Amount, c.Currency = pi.Amount, string(pi.Currency)
		setMeta(meta, "object_id", pi.ID)
		setMeta(meta, "customer_email", pi.ReceiptEmail)
	case ProcessorCheckoutComplete:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		c.Amount, c.Currency = cs.AmountTotal, string(cs.Currency)
		setMeta(meta, "object_id", cs.ID)
		if cs.CustomerDetails != nil {
			setMeta(meta, "customer_email", cs.CustomerDetails.Email)
		} else {
			setMeta(meta, "customer_email", cs.CustomerEmail)
		}
	case ProcessorRefundCreated:
		var rf stripe.Refund
		if err := json.Unmarshal(raw, &rf); err != nil {
			return fmt.Errorf("decode refund: %w", err)
		}
		c.Amount, c.Currency = rf.Amount, string(rf.Currency)
		setMeta(meta, "object_id", rf.ID)
	}
	return nil
}

func setMeta(meta datatypes.JSONMap, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		meta[key] = value
	}
}
