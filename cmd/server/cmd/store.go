package cmd

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/eventhost/internal/api/handlers"
	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/Togather-Foundation/eventhost/internal/metrics"
	"github.com/Togather-Foundation/eventhost/internal/storage"
	"github.com/Togather-Foundation/eventhost/internal/storage/postgres"
	"github.com/Togather-Foundation/eventhost/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// backend is an opened store plus the hooks the server needs around it.
type backend struct {
	repo       storage.Repository
	poolStats  func() metrics.PoolStats
	migrations handlers.MigrationVersionFunc
}

// openBackend connects to the database named by cfg.Database.URL, applying
// migrations first when AutoMigrate is set.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*backend, error) {
	switch cfg.Driver() {
	case "postgres":
		if cfg.AutoMigrate {
			if err := postgres.MigrateUp(cfg.URL); err != nil {
				return nil, err
			}
			logger.Info().Msg("postgres migrations applied")
		}
		pool, err := postgres.OpenPool(ctx, cfg.URL, cfg.MaxConnections)
		if err != nil {
			return nil, err
		}
		repo, err := postgres.NewRepository(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		url := cfg.URL
		return &backend{
			repo:      repo,
			poolStats: metrics.PgxPoolStats(pool),
			migrations: func(context.Context) (uint, bool, error) {
				return postgres.MigrationVersion(url)
			},
		}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := sqlite.MigrateUp(db); err != nil {
				_ = db.Close()
				return nil, err
			}
			logger.Info().Str("path", cfg.SQLitePath()).Msg("sqlite migrations applied")
		}
		repo, err := sqlite.NewRepository(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{
			repo:      repo,
			poolStats: metrics.SQLDBStats(db),
			migrations: func(context.Context) (uint, bool, error) {
				return sqlite.MigrationVersion(db)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database url %q", cfg.URL)
	}
}
