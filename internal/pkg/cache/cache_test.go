package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to CACHE_TEST_ADDR and skips when it is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("CACHE_TEST_ADDR")
	if addr == "" {
		t.Skip("CACHE_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb)
}

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "v0:summary:abc", VersionedKey(0, "summary:abc"))
	assert.Equal(t, "v42:x", VersionedKey(42, "x"))
}

func TestLedgerVersion(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	v, err := c.LedgerVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, c.EventRecorded(ctx, nil))
	v, err = c.LedgerVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	type payload struct{ Net int64 }
	ok, err := c.GetJSON(ctx, "missing", &payload{})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "k", payload{Net: 120}, time.Minute))
	var got payload
	ok, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(120), got.Net)

	ttl, err := c.rdb.TTL(ctx, keyPrefix+"k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
