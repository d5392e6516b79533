package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/checkpulse/internal/config"
	"github.com/fuomag9/checkpulse/internal/store"
)

func TestOpenStore_File(t *testing.T) {
	dir := t.TempDir()

	s, closeStore, err := openStore(config.StoreConfig{Driver: "file"}, dir)
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &store.FileStore{}, s)
	ids, err := s.List(context.Background(), "checks")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := config.StoreConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "checkpulse.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	s, closeStore, err := openStore(cfg, t.TempDir())
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &store.GormStore{}, s)
	require.NoError(t, s.Create(context.Background(), "checks", "a", map[string]string{"id": "a"}))
	ids, err := s.List(context.Background(), "checks")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}
