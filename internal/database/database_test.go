package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/checkpulse/internal/config"
)

func sqliteConfig(t *testing.T) config.StoreConfig {
	t.Helper()
	return config.StoreConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "records.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

func TestRunMigrations_CreatesRecordsTable(t *testing.T) {
	cfg := sqliteConfig(t)

	require.NoError(t, RunMigrations(cfg))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(cfg))

	db, err := Connect(cfg)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("records"))
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.StoreConfig{Driver: "file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres, sqlite")

	assert.Error(t, RunMigrations(config.StoreConfig{Driver: "mysql"}))
}

func TestConnect_SQLiteDefaults(t *testing.T) {
	db, err := Connect(sqliteConfig(t))
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, 5000, timeout)
}
