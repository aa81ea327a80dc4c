// Package webhook authenticates inbound payment-processor deliveries and turns
// them into payment event candidates.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/RevenueLedger/app/models"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"

	DefaultTolerance = 5 * time.Minute

	signatureScheme = "v1"
)

// Reason classifies why a delivery was refused.
type Reason string

const (
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonStaleEvent       Reason = "stale_event"
	ReasonMalformedPayload Reason = "malformed_payload"
)

// RejectionError is returned by Verify for every refused delivery. None of
// them are retryable.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err == nil {
		return "webhook: " + string(e.Reason)
	}
	return fmt.Sprintf("webhook: %s: %v", e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(reason Reason, err error) error {
	return &RejectionError{Reason: reason, Err: err}
}

// ReasonOf extracts the rejection reason from err.
func ReasonOf(err error) (Reason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

// VerifiedEvent is a delivery whose signature and freshness checked out. Event
// is the candidate row; ReceivedAt is already set.
type VerifiedEvent struct {
	Event models.PaymentEvent
	Raw   []byte
}

// Verifier checks deliveries against the shared secret. Now defaults to
// time.Now and is replaceable in tests.
type Verifier struct {
	Secret    []byte
	Tolerance time.Duration
	Now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{Secret: []byte(secret), Tolerance: tolerance, Now: time.Now}
}

// Verify authenticates raw exactly as received. The signature is checked
// before anything in the body is looked at.
func (v *Verifier) Verify(raw []byte, signatureHeader, timestampHeader string) (*VerifiedEvent, error) {
	if len(v.Secret) == 0 {
		return nil, reject(ReasonInvalidSignature, errors.New("no secret configured"))
	}

	tsRaw := strings.TrimSpace(timestampHeader)
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return nil, reject(ReasonInvalidSignature, errors.New("missing or malformed timestamp"))
	}
	if !v.signatureMatches(raw, tsRaw, signatureHeader) {
		return nil, reject(ReasonInvalidSignature, nil)
	}

	// Compare instants, not durations: Sub saturates for far-off timestamps.
	now := v.now()
	signedAt := time.Unix(ts, 0)
	if signedAt.Before(now.Add(-v.Tolerance)) || signedAt.After(now.Add(v.Tolerance)) {
		return nil, reject(ReasonStaleEvent, fmt.Errorf("timestamp %d outside the %s window", ts, v.Tolerance))
	}

	event, err := parsePayload(raw)
	if err != nil {
		return nil, reject(ReasonMalformedPayload, err)
	}
	event.ReceivedAt = now.UTC()
	event.RawPayloadHash = PayloadHash(raw)

	return &VerifiedEvent{Event: *event, Raw: raw}, nil
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// signatureMatches accepts a bare hex digest or a comma-separated list of
// "v1=<hex>" entries, so the secret can be rotated with two live signatures.
func (v *Verifier) signatureMatches(raw []byte, timestamp, header string) bool {
	expected := computeMAC(v.Secret, timestamp, raw)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if scheme, value, ok := strings.Cut(part, "="); ok {
			if scheme != signatureScheme {
				continue
			}
			part = value
		}
		got, err := hex.DecodeString(strings.ToLower(part))
		if err != nil || len(got) == 0 {
			continue
		}
		if hmac.Equal(expected, got) {
			return true
		}
	}
	return false
}

func computeMAC(secret []byte, timestamp string, raw []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(raw)
	return mac.Sum(nil)
}

// Sign produces the signature header value a sender would attach to raw.
func Sign(secret string, timestamp time.Time, raw []byte) (signature, ts string) {
	ts = strconv.FormatInt(timestamp.Unix(), 10)
	return signatureScheme + "=" + hex.EncodeToString(computeMAC([]byte(secret), ts, raw)), ts
}

// PayloadHash is the hex SHA-256 of the verbatim body.
func PayloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
