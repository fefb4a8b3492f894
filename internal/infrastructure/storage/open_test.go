package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/config"
	"lifeline/internal/infrastructure/storage"
)

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lifeline.db")

	h, err := storage.Open(ctx, config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "sqlite", h.Backend.Dialect().Name)
	assert.NoError(t, h.Ping(ctx))
	h.LogStats(ctx)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}
