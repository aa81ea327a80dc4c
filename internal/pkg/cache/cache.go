// Package cache wraps the Redis-compatible cache (Dragonfly in production)
// used for dashboard summaries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

const (
	keyPrefix  = "revenueledger:"
	versionKey = keyPrefix + "ledger_version"
)

type Client struct {
	rdb redis.UniversalClient
}

// New connects to the configured cache server. A failed ping is logged, not
// fatal: every cache read falls back to the database.
func New(ctx context.Context, cfg config.CacheConfig) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	// Test the connection
	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache at %s:%d: %v", cfg.Host, cfg.Port, err)
	} else {
		log.Infof("[Cache] Successfully connected to cache: %s", pong)
	}
	return &Client{rdb: rdb}
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// LedgerVersion returns the current ledger version, 0 if never bumped.
func (c *Client) LedgerVersion(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// BumpLedgerVersion invalidates every summary cached under older versions.
func (c *Client) BumpLedgerVersion(ctx context.Context) (int64, error) {
	return c.rdb.Incr(ctx, versionKey).Result()
}

// EventRecorded bumps the ledger version once an event is in the ledger.
func (c *Client) EventRecorded(ctx context.Context, _ *webhook.VerifiedEvent) error {
	_, err := c.BumpLedgerVersion(ctx)
	return err
}

// GetJSON decodes the value stored at key into dst. It reports false on a
// miss.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v as JSON at key with the given expiration time
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

// VersionedKey namespaces key under a ledger version.
func VersionedKey(version int64, key string) string {
	return "v" + strconv.FormatInt(version, 10) + ":" + key
}
