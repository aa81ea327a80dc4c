package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/streams"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Every body has the shape {"error": code, "message": text}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": errorCode(fe.Code), "message": fe.Message})
	}

	// 2) Validation errors (per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, fieldErr := range ve {
			out[fieldErr.Field()] = fieldErr.Tag()
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Domain errors
	switch {
	case errors.Is(err, ledger.ErrInvalidFilter), errors.Is(err, ledger.ErrInvalidCursor),
		errors.Is(err, apikey.ErrInvalidRequest), errors.Is(err, streams.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, apikey.ErrNotFound), errors.Is(err, streams.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Not found"})
	case errors.Is(err, ledger.ErrStorageUnavailable), errors.Is(err, apikey.ErrUnavailable), errors.Is(err, streams.ErrUnavailable):
		log.Errorf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "service_unavailable",
			"message": "Storage temporarily unavailable, retry later",
		})
	}

	// 4) Unknown errors (500)
	log.Errorf("[HTTP] internal error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_error",
		"message": "internal server error",
	})
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "error"
	}
}
