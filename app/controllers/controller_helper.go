package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
)

const dateLayout = "2006-01-02"

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateLayout, raw)
}

func parseTimeRange(c *fiber.Ctx) (ledger.TimeRange, error) {
	var r ledger.TimeRange
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return r, fiber.NewError(fiber.StatusBadRequest, "invalid 'from': use RFC 3339 or YYYY-MM-DD")
		}
		r.From = t
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return r, fiber.NewError(fiber.StatusBadRequest, "invalid 'to': use RFC 3339 or YYYY-MM-DD")
		}
		r.To = t
	}
	return r, r.Validate()
}

func parseFilter(c *fiber.Ctx) (ledger.Filter, error) {
	tr, err := parseTimeRange(c)
	if err != nil {
		return ledger.Filter{}, err
	}
	bucket, err := ledger.ParseBucket(c.Query("bucket"))
	if err != nil {
		return ledger.Filter{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency != "" && len(currency) != 3 {
		return ledger.Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid 'currency': use an ISO 4217 code")
	}
	return ledger.Filter{TimeRange: tr, Currency: currency, Bucket: bucket}, nil
}

func parsePage(c *fiber.Ctx) (ledger.Page, error) {
	page := ledger.Page{Cursor: strings.TrimSpace(c.Query("cursor"))}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > ledger.MaxPageSize {
			return page, fiber.NewError(fiber.StatusBadRequest, "invalid 'page_size': use 1 to "+strconv.Itoa(ledger.MaxPageSize))
		}
		page.Size = n
	}
	return page, nil
}

// formatTime renders t as RFC 3339 in UTC, or nil when unset.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// formatTimePtr formats an optional timestamp as RFC 3339 in UTC.
func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
