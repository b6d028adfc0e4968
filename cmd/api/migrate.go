package main

// Run database migrations:
//   go run ./cmd/api migrate up
//   go run ./cmd/api migrate down
//   go run ./cmd/api migrate status

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"resume-bridge/internal/shared/config"
	"resume-bridge/internal/shared/storage/db"
	"resume-bridge/internal/shared/telemetry"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE:  withDB(db.RunMigrations),
	}

	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  withDB(db.RunMigrations),
	}

	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  withDB(db.RollbackMigration),
	}

	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the applied state of every migration",
		RunE:  withDB(db.MigrationStatus),
	}
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withDB(fn func(context.Context, *sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		if err := telemetry.Init(cfg.Env, cfg.LogDebug); err != nil {
			return err
		}
		defer telemetry.Sync()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
		if err != nil {
			telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
			return err
		}
		defer sqlDB.Close()

		if err := fn(ctx, sqlDB); err != nil {
			telemetry.Error("migrate.failed", map[string]any{"command": cmd.CommandPath(), "error": err})
			return err
		}
		telemetry.Info("migrate.done", map[string]any{"command": cmd.CommandPath()})
		return nil
	}
}
