package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/Togather-Foundation/eventhost/internal/storage/postgres"
	"github.com/Togather-Foundation/eventhost/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var migrateSteps int

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the embedded SQL migrations against DATABASE_URL.
Works for both postgres:// and sqlite: URLs.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m migrator) error {
				if err := m.up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m migrator) error {
				if err := m.down(migrateSteps); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m migrator) error {
				return printVersion(cmd, m)
			})
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(cmd.Context(), func(m migrator) error {
				if err := m.force(target); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, version, force)
	return cmd
}

// migrator hides which backend the schema lives in.
type migrator struct {
	up      func() error
	down    func(steps int) error
	force   func(version int) error
	version func() (uint, bool, error)
}

func withMigrator(ctx context.Context, fn func(migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return runMigrator(ctx, cfg.Database, fn)
}

func runMigrator(ctx context.Context, cfg config.DatabaseConfig, fn func(migrator) error) error {
	switch cfg.Driver() {
	case "postgres":
		url := cfg.URL
		return fn(migrator{
			up:      func() error { return postgres.MigrateUp(url) },
			down:    func(steps int) error { return postgres.MigrateDown(url, steps) },
			force:   func(v int) error { return postgres.MigrateForce(url, v) },
			version: func() (uint, bool, error) { return postgres.MigrationVersion(url) },
		})
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return fn(migrator{
			up:      func() error { return sqlite.MigrateUp(db) },
			down:    func(steps int) error { return sqlite.MigrateDown(db, steps) },
			force:   func(v int) error { return sqlite.MigrateForce(db, v) },
			version: func() (uint, bool, error) { return sqlite.MigrationVersion(db) },
		})
	default:
		return fmt.Errorf("unsupported database url %q", cfg.URL)
	}
}

func printVersion(cmd *cobra.Command, m migrator) error {
	version, dirty, err := m.version()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dirty {
		fmt.Fprintf(out, "schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(out, "schema version: %d\n", version)
	return nil
}
