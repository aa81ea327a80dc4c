package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/usercontext"
)

const usageWriteTimeout = 2 * time.Second

// UsageRecorder is satisfied by repository.UsageRepository.
type UsageRecorder interface {
	Record(ctx context.Context, entry *models.APIUsageLog) error
}

// UsageLogger writes one usage row per request made with an API key or the
// admin key. It must be installed right after APIKeyGate so that it wraps
// every authenticated handler. Public routes are not recorded. A failed write
// is logged and never fails the request.
func UsageLogger(recorder UsageRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()

		keyID := usercontext.APIKeyID(c)
		if keyID == "" && usercontext.IsAdmin(c) {
			keyID = models.AdminUsageKeyID
		}
		if keyID == "" {
			return chainErr
		}

		// Render the error now so the recorded status is the one sent.
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		entry := &models.APIUsageLog{
			KeyID:          keyID,
			Method:         c.Method(),
			Endpoint:       truncate(c.Path(), 255),
			StatusCode:     c.Response().StatusCode(),
			ResponseTimeMs: time.Since(start).Milliseconds(),
			CreatedAt:      time.Now().UTC(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), usageWriteTimeout)
		defer cancel()
		if err := recorder.Record(ctx, entry); err != nil {
			log.Warnf("[Usage] could not record %s %s for %s: %v", entry.Method, entry.Endpoint, keyID, err)
		}
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
