package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/app/repository"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/constants"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/testutil"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/usercontext"
)

type stubAuth struct {
	keys   map[string]string
	limits map[string]int
	err    error
	calls  int
}

func (s *stubAuth) Authenticate(_ context.Context, presented string) (apikey.Result, error) {
	s.calls++
	if s.err != nil {
		return apikey.Result{}, s.err
	}
	if id, ok := s.keys[presented]; ok {
		return apikey.Result{Authorized: true, KeyID: id, DailyLimit: s.limits[id]}, nil
	}
	return apikey.Result{}, nil
}

func newGatedApp(auth Authenticator) *fiber.App {
	app := fiber.New()
	app.Use(APIKeyGate(auth, constants.PublicRoutes))
	ok := func(c *fiber.Ctx) error { return c.SendString("ok:" + usercontext.APIKeyID(c)) }
	app.Get("/health", ok)
	app.Post("/webhooks/payment", ok)
	app.Get("/api/v1/dashboard", ok)
	app.Get("/docs/api/index.html", ok)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAPIKeyGate(t *testing.T) {
	auth := &stubAuth{keys: map[string]string{"rk_good": "key_1"}}
	app := newGatedApp(auth)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		status  int
		body    string
	}{
		{name: "health is public", method: "GET", path: "/health", status: 200, body: "ok:"},
		{name: "webhook is public", method: "POST", path: "/webhooks/payment", status: 200, body: "ok:"},
		{name: "docs are public", method: "GET", path: "/docs/api/index.html", status: 200, body: "ok:"},
		{name: "dashboard needs a key", method: "GET", path: "/api/v1/dashboard", status: 401},
		{name: "dashboard with key", method: "GET", path: "/api/v1/dashboard", headers: map[string]string{"X-API-Key": "rk_good"}, status: 200, body: "ok:key_1"},
		{name: "bearer also accepted", method: "GET", path: "/api/v1/dashboard", headers: map[string]string{"Authorization": "Bearer rk_good"}, status: 200, body: "ok:key_1"},
		{name: "wrong method on public path", method: "POST", path: "/health", status: 401},
		{name: "unknown route is gated", method: "GET", path: "/nope", status: 401},
		{name: "traversal through docs is gated", method: "GET", path: "/docs/../api/v1/dashboard", status: 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, tt.method, tt.path, tt.headers)
			assert.Equal(t, tt.status, status)
			if tt.body != "" {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestAPIKeyGateUniformUnauthorized(t *testing.T) {
	app := newGatedApp(&stubAuth{keys: map[string]string{}})

	_, missing := doRequest(t, app, "GET", "/api/v1/dashboard", nil)
	_, unknown := doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_unknown"})
	_, malformed := doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "###"})

	assert.Equal(t, missing, unknown)
	assert.Equal(t, missing, malformed)
	assert.JSONEq(t, `{"error":"unauthorized","message":"Invalid or missing API key"}`, missing)
}

func TestAPIKeyGateStorageUnavailable(t *testing.T) {
	app := newGatedApp(&stubAuth{err: apikey.ErrUnavailable})

	status, body := doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_good"})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, body, "service_unavailable")
	assert.NotContains(t, body, "storage")
}

func TestIsPublicRoute(t *testing.T) {
	assert.True(t, IsPublicRoute(constants.PublicRoutes, "GET", "/health/"))
	assert.True(t, IsPublicRoute(constants.PublicRoutes, "get", "/HEALTH"))
	assert.True(t, IsPublicRoute(constants.PublicRoutes, "POST", "/api/v1/admin/keys"))
	assert.False(t, IsPublicRoute(constants.PublicRoutes, "GET", "/api/v1/revenue/summary"))
	assert.False(t, IsPublicRoute(constants.PublicRoutes, "GET", "/docs"))
	assert.False(t, IsPublicRoute(nil, "GET", "/health"))
}

func TestRequireAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	app := fiber.New()
	app.Post("/admin", RequireAdmin(string(hash)), func(c *fiber.Ctx) error {
		if !usercontext.IsAdmin(c) {
			return errors.New("admin flag missing")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	disabled := fiber.New()
	disabled.Post("/admin", RequireAdmin(""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	status, _ := doRequest(t, app, "POST", "/admin", map[string]string{AdminKeyHeader: "admin-secret"})
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = doRequest(t, app, "POST", "/admin", map[string]string{AdminKeyHeader: "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doRequest(t, app, "POST", "/admin", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doRequest(t, disabled, "POST", "/admin", map[string]string{AdminKeyHeader: "admin-secret"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestPerKeyRateLimit(t *testing.T) {
	auth := &stubAuth{keys: map[string]string{"rk_a": "key_a", "rk_b": "key_b"}}
	app := fiber.New()
	app.Use(APIKeyGate(auth, constants.PublicRoutes))
	app.Use(PerKeyRateLimit(config.RateLimitConfig{Max: 2, Window: time.Minute}, nil))
	app.Get("/api/v1/dashboard", func(c *fiber.Ctx) error { return c.SendString("ok") })

	keyA := map[string]string{"X-API-Key": "rk_a"}
	for i := 0; i < 2; i++ {
		status, _ := doRequest(t, app, "GET", "/api/v1/dashboard", keyA)
		assert.Equal(t, fiber.StatusOK, status)
	}
	status, body := doRequest(t, app, "GET", "/api/v1/dashboard", keyA)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Contains(t, body, "rate_limited")

	// Another key has its own budget.
	status, _ = doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_b"})
	assert.Equal(t, fiber.StatusOK, status)
}

type memoryUsage struct {
	mu      sync.Mutex
	entries []models.APIUsageLog
	err     error
}

func (m *memoryUsage) Record(_ context.Context, entry *models.APIUsageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryUsage) CountSince(_ context.Context, keyID string, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, e := range m.entries {
		if e.KeyID == keyID {
			n++
		}
	}
	return n, nil
}

func TestUsageLoggerRecordsKeyedRequests(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	usage := &memoryUsage{}
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.Status(fiber.StatusTeapot).SendString(err.Error())
	}})
	app.Use(APIKeyGate(&stubAuth{keys: map[string]string{"rk_a": "key_a"}}, constants.PublicRoutes))
	app.Use(UsageLogger(usage))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/v1/dashboard", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/v1/revenue/summary", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Post("/api/v1/admin/keys", RequireAdmin(string(hash)), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	keyA := map[string]string{"X-API-Key": "rk_a"}
	doRequest(t, app, "GET", "/health", nil)
	doRequest(t, app, "GET", "/api/v1/dashboard", nil)
	doRequest(t, app, "GET", "/api/v1/dashboard", keyA)
	status, body := doRequest(t, app, "GET", "/api/v1/revenue/summary", keyA)
	assert.Equal(t, fiber.StatusTeapot, status)
	assert.Equal(t, "boom", body)
	doRequest(t, app, "POST", "/api/v1/admin/keys", map[string]string{AdminKeyHeader: "admin-secret"})

	require.Len(t, usage.entries, 3)
	assert.Equal(t, "key_a", usage.entries[0].KeyID)
	assert.Equal(t, "GET", usage.entries[0].Method)
	assert.Equal(t, "/api/v1/dashboard", usage.entries[0].Endpoint)
	assert.Equal(t, fiber.StatusOK, usage.entries[0].StatusCode)
	assert.Equal(t, fiber.StatusTeapot, usage.entries[1].StatusCode)
	assert.Equal(t, models.AdminUsageKeyID, usage.entries[2].KeyID)
	assert.Equal(t, fiber.StatusCreated, usage.entries[2].StatusCode)
}

func TestUsageLoggerIgnoresWriteFailures(t *testing.T) {
	app := fiber.New()
	app.Use(APIKeyGate(&stubAuth{keys: map[string]string{"rk_a": "key_a"}}, constants.PublicRoutes))
	app.Use(UsageLogger(&memoryUsage{err: errors.New("disk full")}))
	app.Get("/api/v1/dashboard", func(c *fiber.Ctx) error { return c.SendString("ok") })

	status, body := doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_a"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestDailyQuota(t *testing.T) {
	auth := &stubAuth{
		keys:   map[string]string{"rk_free": "key_free", "rk_paid": "key_paid"},
		limits: map[string]int{"key_free": 2},
	}
	usage := &memoryUsage{}
	app := fiber.New()
	app.Use(APIKeyGate(auth, constants.PublicRoutes))
	app.Use(UsageLogger(usage))
	app.Use(DailyQuota(usage))
	app.Get("/api/v1/dashboard", func(c *fiber.Ctx) error { return c.SendString("ok") })

	free := map[string]string{"X-API-Key": "rk_free"}
	for i := 0; i < 2; i++ {
		status, _ := doRequest(t, app, "GET", "/api/v1/dashboard", free)
		assert.Equal(t, fiber.StatusOK, status)
	}
	status, body := doRequest(t, app, "GET", "/api/v1/dashboard", free)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.JSONEq(t, `{"error":"rate_limited","message":"Daily request limit reached"}`, body)

	// No limit means no counting at all.
	for i := 0; i < 5; i++ {
		status, _ = doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_paid"})
		assert.Equal(t, fiber.StatusOK, status)
	}
}

func TestDailyQuotaCountsFromUTCMidnight(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewUsageRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ctx, &models.APIUsageLog{KeyID: "key_a", Method: "GET", Endpoint: "/x", StatusCode: 200, CreatedAt: now.Add(-10 * time.Hour)}))
	require.NoError(t, repo.Record(ctx, &models.APIUsageLog{KeyID: "key_a", Method: "GET", Endpoint: "/x", StatusCode: 200, CreatedAt: now.Add(-time.Hour)}))

	app := fiber.New()
	app.Use(APIKeyGate(&stubAuth{keys: map[string]string{"rk_a": "key_a"}, limits: map[string]int{"key_a": 2}}, constants.PublicRoutes))
	app.Use(dailyQuota(repo, func() time.Time { return now }))
	app.Get("/api/v1/dashboard", func(c *fiber.Ctx) error { return c.SendString("ok") })

	// Yesterday's request does not count.
	status, _ := doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_a"})
	assert.Equal(t, fiber.StatusOK, status)

	require.NoError(t, repo.Record(ctx, &models.APIUsageLog{KeyID: "key_a", Method: "GET", Endpoint: "/x", StatusCode: 200, CreatedAt: now}))
	req := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
	req.Header.Set("X-API-Key", "rk_a")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "52200", resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestDailyQuotaStorageUnavailable(t *testing.T) {
	app := fiber.New()
	app.Use(APIKeyGate(&stubAuth{keys: map[string]string{"rk_a": "key_a"}, limits: map[string]int{"key_a": 10}}, constants.PublicRoutes))
	app.Use(DailyQuota(&memoryUsage{err: errors.New("db gone")}))
	app.Get("/api/v1/dashboard", func(c *fiber.Ctx) error { return c.SendString("ok") })

	status, body := doRequest(t, app, "GET", "/api/v1/dashboard", map[string]string{"X-API-Key": "rk_a"})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.NotContains(t, body, "db gone")
}
