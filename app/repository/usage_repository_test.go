package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/testutil"
)

func TestUsageRepositoryCountSince(t *testing.T) {
	repo := NewFactory(testutil.NewTestDB(t)).GetUsageRepository()
	ctx := context.Background()
	midnight := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	for _, row := range []models.APIUsageLog{
		{KeyID: "key_a", CreatedAt: midnight.Add(-time.Second)},
		{KeyID: "key_a", CreatedAt: midnight},
		{KeyID: "key_a", CreatedAt: midnight.Add(5 * time.Hour)},
		{KeyID: "key_b", CreatedAt: midnight.Add(time.Hour)},
	} {
		row.Method, row.Endpoint, row.StatusCode = "GET", "/api/v1/dashboard", 200
		require.NoError(t, repo.Record(ctx, &row))
	}

	n, err := repo.CountSince(ctx, "key_a", midnight)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountSince(ctx, "key_unknown", midnight)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Error(t, repo.Record(ctx, nil))
}
