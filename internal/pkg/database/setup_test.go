package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
)

func TestDialectorByDriver(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Name: "ledger", Path: "x.db"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSetupDatabaseSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "ledger.db"),
		AutoMigrate: true,
		MaxRetries:  1,
	}

	db, err := SetupDatabase(cfg, false)
	require.NoError(t, err)
	require.NoError(t, Ping(context.Background(), db))

	assert.True(t, db.Migrator().HasTable(&models.PaymentEvent{}))
	assert.True(t, db.Migrator().HasTable(&models.RevenueLedgerEntry{}))
	assert.True(t, db.Migrator().HasTable(&models.APIKey{}))
}

func TestPingNilDB(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil))
}
