package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/usercontext"
)

// PerKeyRateLimit limits requests per authenticated API key. It must run after
// APIKeyGate; requests without a key id (public routes) are counted per IP.
// A nil storage keeps counters in process memory.
func PerKeyRateLimit(cfg config.RateLimitConfig, storage fiber.Storage) fiber.Handler {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: window,
		Next: func(c *fiber.Ctx) bool {
			return cfg.Max <= 0
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := usercontext.APIKeyID(c); id != "" {
				return "key:" + id
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
		Storage: storage,
	})
}
