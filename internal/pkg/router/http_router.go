package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/RevenueLedger/app/controllers"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
)

// HttpRouter mounts the routes outside the versioned API: health, service
// info, the payment webhook and metrics.
type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	health := controllers.NewHealthController(databasePinger(h.deps.DB), h.deps.Cache)
	app.Get(constants.HealthRoute, health.HandleHealth)
	app.Get(constants.APIInfoRoute, controllers.HandleAPIInfo)

	hooks := controllers.NewWebhookController(h.deps.Verifier, h.deps.Pipeline)
	app.Post(constants.WebhookRoute, hooks.HandlePaymentWebhook)

	// fiber metrics, behind the API key gate
	app.Get(constants.MetricsRoute, monitor.New(monitor.Config{APIOnly: true}))
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
