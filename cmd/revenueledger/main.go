package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/RevenueLedger/app/controllers"
	"github.com/ManuelReschke/RevenueLedger/app/repository"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/archive"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/cache"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/dashboard"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/database"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/env"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ingest"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/mail"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/router"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/streams"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	app, cleanup, err := NewApplication(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}
	defer cleanup()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("[Main] Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[Main] Shutdown failed: %v", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)); err != nil {
		log.Fatalf("[Main] %v", err)
	}
}

// NewApplication wires storage, the ingestion pipeline, the key gate and the
// reporting routes into one fiber app. The returned cleanup closes the
// connections it opened.
func NewApplication(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	db, err := database.SetupDatabase(cfg.Database, cfg.IsDev())
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warnf("[Main] Cleanup failed: %v", err)
			}
		}
	}

	store := ledger.NewGormStore(db, cfg.Ledger.StorageTimeout)

	var (
		listeners      []ingest.Listener
		summaries      dashboard.SummaryCache
		cachePinger    controllers.Pinger
		limiterStorage fiber.Storage
	)

	if cfg.Archive.Enabled {
		archiver, err := archive.NewClient(ctx, cfg.Archive, cfg.IsDev())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("webhook archive: %w", err)
		}
		listeners = append(listeners, archiver)
	}

	if cfg.Cache.Enabled() {
		cacheClient := cache.New(ctx, cfg.Cache)
		closers = append(closers, cacheClient.Close)
		listeners = append(listeners, cacheClient)
		summaries = cacheClient
		cachePinger = cacheClient

		// rate limit counters live in DB 1, the cache uses DB 0
		storage := redis.New(redis.Config{
			Host:     cfg.Cache.Host,
			Port:     cfg.Cache.Port,
			Password: cfg.Cache.Password,
			Database: 1,
		})
		closers = append(closers, storage.Close)
		limiterStorage = storage
	}

	var mailer apikey.Mailer
	if cfg.Mail.Enabled() {
		mailer = mail.NewSMTPMailer(cfg.Mail)
	}
	if !cfg.Admin.Enabled() {
		log.Warn("[Main] ADMIN_KEY_BCRYPT is not set, key administration routes are disabled")
	}

	repos := repository.NewFactory(db)
	keys := repos.GetAPIKeyRepository()
	issuer := apikey.NewIssuer(keys, mailer)
	issuer.FreeDailyLimit = cfg.Quota.FreeDailyLimit

	app := fiber.New(fiber.Config{
		AppName:      "RevenueLedger",
		ErrorHandler: controllers.ErrorHandler,
		BodyLimit:    cfg.BodyLimitBytes,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())
	if cfg.AllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		}))
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Config:         cfg,
		DB:             db,
		Cache:          cachePinger,
		Verifier:       webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance),
		Pipeline:       ingest.New(store, cfg.Ledger, listeners...),
		Authenticator:  apikey.NewAuthenticator(keys, cfg.Ledger.StorageTimeout),
		Issuer:         issuer,
		Reporting:      dashboard.New(store, summaries, cfg.Cache.DashboardTTL),
		Streams:        streams.NewService(repos.GetRevenueStreamRepository()),
		Usage:          repos.GetUsageRepository(),
		LimiterStorage: limiterStorage,
		DocsFile:       findDocsFile(),
	})

	return app, cleanup, nil
}

// findDocsFile looks for the OpenAPI document relative to the usual working
// directories. Documentation is skipped when it cannot be found.
func findDocsFile() string {
	basePaths := []string{
		"./",     // project root
		"../../", // from cmd/revenueledger
	}
	for _, base := range basePaths {
		path := base + strings.TrimPrefix(constants.OpenAPIDocURL, "./")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	log.Warn("[Main] OpenAPI document not found, /docs/api is disabled")
	return ""
}
