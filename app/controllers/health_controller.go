package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	database Pinger
	cache    Pinger
	timeout  time.Duration
}

// NewHealthController creates the health controller. cache may be nil.
func NewHealthController(database, cache Pinger) *HealthController {
	return &HealthController{database: database, cache: cache, timeout: 2 * time.Second}
}

// HandleHealth always answers 200 so orchestrators keep the process; the body
// says whether the database is reachable.
func (h *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	status := "healthy"
	checks := fiber.Map{"database": "ok"}
	if err := h.database.Ping(ctx); err != nil {
		log.Warnf("[Health] database ping failed: %v", err)
		status = "degraded"
		checks["database"] = "unavailable"
	}
	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = "unavailable"
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func HandleAPIInfo(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"name": "RevenueLedger",
		"docs": "/docs/api/v1",
		"endpoints": fiber.Map{
			"health":       "GET " + constants.HealthRoute,
			"webhook":      "POST " + constants.WebhookRoute,
			"dashboard":    "GET " + constants.APIV1Route + "/dashboard",
			"summary":      "GET " + constants.APIV1Route + "/revenue/summary",
			"transactions": "GET " + constants.APIV1Route + "/revenue/transactions",
			"event":        "GET " + constants.APIV1Route + "/events/{event_id}",
		},
		"authentication": "X-API-Key header",
	})
}
