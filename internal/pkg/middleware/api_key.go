package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/usercontext"
)

// Authenticator is satisfied by *apikey.Authenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, presented string) (apikey.Result, error)
}

// APIKeyGate authenticates every request except the listed public routes. It
// is installed once on the app, so routes added later are protected without
// further wiring.
func APIKeyGate(auth Authenticator, public []constants.PublicRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if IsPublicRoute(public, c.Method(), c.Path()) {
			return c.Next()
		}

		presented := extractAPIKeyFromHeader(c)
		res, err := auth.Authenticate(c.UserContext(), presented)
		if err != nil {
			log.Errorf("[Auth] api key lookup failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Authentication temporarily unavailable"})
		}
		if !res.Authorized {
			if presented != "" {
				log.Warnf("[Auth] rejected api key %s from %s", models.MaskAPIKey(presented), c.IP())
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or missing API key"})
		}

		c.Locals(usercontext.KeyAPIKeyID, res.KeyID)
		c.Locals(usercontext.KeyAPIDailyLimit, res.DailyLimit)
		return c.Next()
	}
}

// IsPublicRoute matches method and path against the allowlist. Matching is
// case-insensitive and ignores a trailing slash, like the router.
func IsPublicRoute(public []constants.PublicRoute, method, path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	for _, r := range public {
		if !strings.EqualFold(r.Method, method) {
			continue
		}
		if r.Prefix {
			if len(path) >= len(r.Path) && strings.EqualFold(path[:len(r.Path)], r.Path) {
				return true
			}
			continue
		}
		if strings.EqualFold(trimSlash(path), trimSlash(r.Path)) {
			return true
		}
	}
	return false
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
