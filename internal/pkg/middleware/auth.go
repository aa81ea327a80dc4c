package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/usercontext"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdmin guards key provisioning with the admin key. The stored value is
// a bcrypt hash; an empty hash disables the admin routes entirely.
func RequireAdmin(adminKeyHash string) fiber.Handler {
	hash := []byte(strings.TrimSpace(adminKeyHash))
	return func(c *fiber.Ctx) error {
		if len(hash) == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Not found"})
		}
		presented := strings.TrimSpace(c.Get(AdminKeyHeader))
		if presented == "" || len(presented) > 72 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or missing admin key"})
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(presented)); err != nil {
			if err != bcrypt.ErrMismatchedHashAndPassword {
				log.Errorf("[Auth] admin key hash unusable: %v", err)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or missing admin key"})
		}
		c.Locals(usercontext.KeyIsAdmin, true)
		return c.Next()
	}
}
