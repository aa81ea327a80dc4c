package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ingest"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

// Ingester is satisfied by *ingest.Pipeline.
type Ingester interface {
	Ingest(ctx context.Context, ev *webhook.VerifiedEvent) (ingest.Result, error)
}

type WebhookController struct {
	verifier *webhook.Verifier
	pipeline Ingester
}

func NewWebhookController(verifier *webhook.Verifier, pipeline Ingester) *WebhookController {
	return &WebhookController{verifier: verifier, pipeline: pipeline}
}

// HandlePaymentWebhook answers 200 when the sender is done with the delivery,
// 400 when it must not retry and 503 when it should. Bodies carry no detail.
func (w *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns.
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ev, err := w.verifier.Verify(rawBody, c.Get(webhook.SignatureHeader), c.Get(webhook.TimestampHeader))
	if err != nil {
		reason, _ := webhook.ReasonOf(err)
		log.Warnf("[Webhook] rejected delivery from %s: %s", c.IP(), reason)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
	}

	res, err := w.pipeline.Ingest(c.UserContext(), ev)
	if err != nil {
		log.Errorf("[Webhook] ingest of %s failed: %v", ev.Event.EventID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable"})
	}

	switch res.Status {
	case ingest.Accepted:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	case ingest.DuplicateIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
	}
}
