package usercontext

import "github.com/gofiber/fiber/v2"

// APIKeyID returns the id of the key that authenticated the request, or an
// empty string on public routes.
func APIKeyID(c *fiber.Ctx) string {
	id, _ := c.Locals(KeyAPIKeyID).(string)
	return id
}

// DailyLimit returns the daily request allowance of the authenticated key.
// Zero means unlimited.
func DailyLimit(c *fiber.Ctx) int {
	n, _ := c.Locals(KeyAPIDailyLimit).(int)
	return n
}

// IsAdmin checks if the request presented a valid admin key
func IsAdmin(c *fiber.Ctx) bool {
	ok, _ := c.Locals(KeyIsAdmin).(bool)
	return ok
}
