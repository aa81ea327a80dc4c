package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/streams"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "fiber error", err: fiber.NewError(fiber.StatusTooManyRequests, "slow down"), wantStatus: 429, wantCode: "rate_limited"},
		{name: "invalid filter", err: fmt.Errorf("%w: bad", ledger.ErrInvalidFilter), wantStatus: 400, wantCode: "bad_request"},
		{name: "invalid cursor", err: ledger.ErrInvalidCursor, wantStatus: 400, wantCode: "bad_request"},
		{name: "invalid key request", err: apikey.ErrInvalidRequest, wantStatus: 400, wantCode: "bad_request"},
		{name: "event not found", err: ledger.ErrNotFound, wantStatus: 404, wantCode: "not_found"},
		{name: "key not found", err: apikey.ErrNotFound, wantStatus: 404, wantCode: "not_found"},
		{name: "ledger unavailable", err: fmt.Errorf("%w: timeout", ledger.ErrStorageUnavailable), wantStatus: 503, wantCode: "service_unavailable"},
		{name: "keys unavailable", err: apikey.ErrUnavailable, wantStatus: 503, wantCode: "service_unavailable"},
		{name: "invalid stream", err: fmt.Errorf("%w: no fields to update", streams.ErrInvalidRequest), wantStatus: 400, wantCode: "bad_request"},
		{name: "stream not found", err: streams.ErrNotFound, wantStatus: 404, wantCode: "not_found"},
		{name: "streams unavailable", err: fmt.Errorf("%w: locked", streams.ErrUnavailable), wantStatus: 503, wantCode: "service_unavailable"},
		{name: "unknown", err: errors.New("boom"), wantStatus: 500, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, body["message"], "boom")
		})
	}
}
