package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		URL:         "sqlite:" + filepath.Join(t.TempDir(), "eventhost.db"),
		AutoMigrate: true,
	}

	store, err := openBackend(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.repo.Close() })

	version, dirty, err := store.migrations(ctx)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	require.NoError(t, store.repo.Ping(ctx))
	stats := store.poolStats()
	require.GreaterOrEqual(t, stats.Open, 0)
}

func TestOpenBackend_UnsupportedURL(t *testing.T) {
	_, err := openBackend(context.Background(), config.DatabaseConfig{URL: "mysql://localhost/db"}, zerolog.Nop())
	require.ErrorContains(t, err, "unsupported database url")
}
