package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/usercontext"
)

// UsageCounter is satisfied by repository.UsageRepository.
type UsageCounter interface {
	CountSince(ctx context.Context, keyID string, since time.Time) (int64, error)
}

// DailyQuota enforces the per-key daily allowance set by APIKeyGate. Requests
// already recorded by UsageLogger since UTC midnight count against it. Keys
// with a zero limit are not checked.
func DailyQuota(counter UsageCounter) fiber.Handler {
	return dailyQuota(counter, time.Now)
}

func dailyQuota(counter UsageCounter, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keyID := usercontext.APIKeyID(c)
		limit := usercontext.DailyLimit(c)
		if keyID == "" || limit <= 0 {
			return c.Next()
		}

		t := now().UTC()
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		used, err := counter.CountSince(c.UserContext(), keyID, midnight)
		if err != nil {
			log.Errorf("[Quota] usage count for %s failed: %v", keyID, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Usage accounting temporarily unavailable"})
		}
		if used >= int64(limit) {
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds(t, midnight))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Daily request limit reached"})
		}
		return c.Next()
	}
}

func retryAfterSeconds(now, midnight time.Time) string {
	secs := int64(midnight.Add(24*time.Hour).Sub(now) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
