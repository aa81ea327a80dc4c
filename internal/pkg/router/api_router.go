package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RevenueLedger/app/controllers"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/middleware"
)

// ApiRouter mounts /api/v1. Reporting routes rely on the app-wide gate and
// count against the key's daily quota; admin routes carry their own admin key
// check.
type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	v1 := app.Group(constants.APIV1Route,
		middleware.PerKeyRateLimit(h.deps.Config.RateLimit, h.deps.LimiterStorage),
		middleware.DailyQuota(h.deps.Usage),
	)

	revenue := controllers.NewRevenueController(h.deps.Reporting)
	v1.Get("/dashboard", revenue.HandleDashboard)
	v1.Get("/revenue/summary", revenue.HandleSummary)
	v1.Get("/revenue/transactions", revenue.HandleTransactions)
	v1.Get("/events/:event_id", revenue.HandleGetEvent)

	streams := controllers.NewRevenueStreamController(h.deps.Streams)
	v1.Get("/revenue/streams", streams.HandleListStreams)
	v1.Post("/revenue/streams", streams.HandleCreateStream)
	v1.Get("/revenue/streams/summary", streams.HandleStreamSummary)
	v1.Get("/revenue/streams/:stream_id", streams.HandleGetStream)
	v1.Put("/revenue/streams/:stream_id", streams.HandleUpdateStream)

	admin := v1.Group("/admin", middleware.RequireAdmin(h.deps.Config.Admin.KeyBcrypt))
	keys := controllers.NewAdminKeyController(h.deps.Issuer)
	admin.Get("/keys", keys.HandleListKeys)
	admin.Post("/keys", keys.HandleCreateKey)
	admin.Post("/keys/:key_id/revoke", keys.HandleRevokeKey)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
