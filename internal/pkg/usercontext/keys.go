package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyAPIKeyID      = "api_key_id"
	KeyAPIDailyLimit = "api_daily_limit"
	KeyIsAdmin       = "isAdmin"
)
