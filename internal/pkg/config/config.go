// Package config turns environment variables into the typed settings every
// component receives at construction.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/env"
)

const (
	DefaultWebhookTolerance = 5 * time.Minute
	DefaultStorageTimeout   = 5 * time.Second
)

type Config struct {
	AppEnv         string
	AppHost        string `validate:"required"`
	AppPort        string `validate:"required,numeric"`
	BodyLimitBytes int    `validate:"gt=0"`
	AllowedOrigins string

	Webhook   WebhookConfig
	Database  DatabaseConfig
	Ledger    LedgerConfig
	RateLimit RateLimitConfig
	Quota     QuotaConfig
	Cache     CacheConfig
	Admin     AdminConfig
	Archive   ArchiveConfig
	Mail      MailConfig
}

// WebhookConfig holds the shared secret agreed with the payment processor.
type WebhookConfig struct {
	Secret    string        `validate:"required,min=16"`
	Tolerance time.Duration `validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver      string `validate:"oneof=mysql postgres sqlite"`
	Host        string
	Port        string
	User        string
	Password    string
	Name        string `validate:"required_unless=Driver sqlite"`
	Path        string `validate:"required_if=Driver sqlite"`
	AutoMigrate bool
	MaxRetries  int           `validate:"gte=1"`
	RetryDelay  time.Duration `validate:"gte=0"`
}

type LedgerConfig struct {
	StorageTimeout       time.Duration `validate:"gt=0"`
	Currencies           []string      `validate:"dive,len=3,alpha"`
	RetryMaxAttempts     uint          `validate:"gte=1,lte=10"`
	RetryInitialInterval time.Duration `validate:"gt=0"`
}

type RateLimitConfig struct {
	Max    int           `validate:"gte=0"`
	Window time.Duration `validate:"gt=0"`
}

// QuotaConfig sets the daily request allowance given to newly issued free
// keys. Zero means free keys are unlimited.
type QuotaConfig struct {
	FreeDailyLimit int `validate:"gte=0"`
}

type CacheConfig struct {
	Host         string
	Port         int `validate:"gte=0,lte=65535"`
	Password     string
	DashboardTTL time.Duration `validate:"gt=0"`
}

// Enabled reports whether a Redis-compatible cache is configured.
func (c CacheConfig) Enabled() bool { return c.Host != "" }

// AdminConfig carries the bcrypt hash of the admin key that guards key
// provisioning. Provisioning is disabled when it is empty.
type AdminConfig struct {
	KeyBcrypt string
}

func (c AdminConfig) Enabled() bool { return c.KeyBcrypt != "" }

type ArchiveConfig struct {
	Enabled         bool
	AccessKeyID     string `validate:"required_if=Enabled true"`
	SecretAccessKey string `validate:"required_if=Enabled true"`
	Region          string
	BucketName      string `validate:"required_if=Enabled true"`
	EndpointURL     string
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

func (c MailConfig) Enabled() bool { return c.Host != "" }

var validate = validator.New()

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(env.GetEnv(key, ""))
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := strings.TrimSpace(env.GetEnv(key, ""))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}

	cfg := &Config{
		AppEnv:         env.GetEnv("APP_ENV", "prod"),
		AppHost:        env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort:        env.GetEnv("APP_PORT", "4000"),
		BodyLimitBytes: integer("BODY_LIMIT_BYTES", 1<<20),
		AllowedOrigins: env.GetEnv("ALLOWED_ORIGINS", ""),
		Webhook: WebhookConfig{
			Secret:    strings.TrimSpace(env.GetEnv("WEBHOOK_SECRET", "")),
			Tolerance: duration("WEBHOOK_TOLERANCE", DefaultWebhookTolerance),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(env.GetEnv("DB_DRIVER", "mysql")),
			Host:        env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:        env.GetEnv("DB_PORT", ""),
			User:        env.GetEnv("DB_USER", ""),
			Password:    env.GetEnv("DB_PASSWORD", ""),
			Name:        env.GetEnv("DB_NAME", ""),
			Path:        env.GetEnv("DB_PATH", ""),
			AutoMigrate: env.GetEnv("DB_AUTO_MIGRATE", "false") == "true",
			MaxRetries:  integer("DB_MAX_RETRIES", 5),
			RetryDelay:  duration("DB_RETRY_DELAY", 5*time.Second),
		},
		Ledger: LedgerConfig{
			StorageTimeout:       duration("LEDGER_STORAGE_TIMEOUT", DefaultStorageTimeout),
			Currencies:           splitList(env.GetEnv("LEDGER_CURRENCIES", "")),
			RetryMaxAttempts:     uint(integer("RETRY_MAX_ATTEMPTS", 3)),
			RetryInitialInterval: duration("RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			Max:    integer("RATE_LIMIT_MAX", 120),
			Window: duration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Quota: QuotaConfig{
			FreeDailyLimit: integer("QUOTA_FREE_DAILY_LIMIT", 100),
		},
		Cache: CacheConfig{
			Host:         env.GetEnv("CACHE_HOST", ""),
			Port:         integer("CACHE_PORT", 6379),
			Password:     env.GetEnv("CACHE_PASSWORD", ""),
			DashboardTTL: duration("DASHBOARD_CACHE_TTL", 30*time.Second),
		},
		Admin: AdminConfig{
			KeyBcrypt: strings.TrimSpace(env.GetEnv("ADMIN_KEY_BCRYPT", "")),
		},
		Archive: ArchiveConfig{
			Enabled:         env.GetEnv("S3_ARCHIVE_ENABLED", "false") == "true",
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "us-east-1"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},
		Mail: MailConfig{
			Host:     env.GetEnv("SMTP_HOST", ""),
			Port:     env.GetEnv("SMTP_PORT", "587"),
			Username: env.GetEnv("SMTP_USERNAME", ""),
			Password: env.GetEnv("SMTP_PASSWORD", ""),
			Sender:   env.GetEnv("SMTP_SENDER", ""),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
