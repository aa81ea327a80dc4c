package router

import (
	"context"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/controllers"
	"github.com/ManuelReschke/RevenueLedger/app/repository"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/database"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/middleware"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the components the routes hand requests to. Cache,
// LimiterStorage and DocsFile are optional. Usage backs both usage logging and
// the daily quota.
type Dependencies struct {
	Config         *config.Config
	DB             *gorm.DB
	Cache          controllers.Pinger
	Verifier       *webhook.Verifier
	Pipeline       controllers.Ingester
	Authenticator  middleware.Authenticator
	Issuer         *apikey.Issuer
	Reporting      controllers.ReportingService
	Streams        controllers.StreamService
	Usage          repository.UsageRepository
	LimiterStorage fiber.Storage
	DocsFile       string
}

// InstallRouter puts the API key gate in front of everything, then mounts the
// documentation and the routes. The gate must stay the first middleware and
// the usage logger the second.
func InstallRouter(app *fiber.App, deps Dependencies) {
	app.Use(middleware.APIKeyGate(deps.Authenticator, constants.PublicRoutes))
	app.Use(middleware.UsageLogger(deps.Usage))

	if deps.DocsFile != "" {
		// SWAGGER / OPENAPI
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: deps.DocsFile,
			Path:     "v1",
		}))
	}

	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

func databasePinger(db *gorm.DB) controllers.Pinger {
	return controllers.PingFunc(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})
}
