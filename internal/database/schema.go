package database

import (
	"context"
	"fmt"
	"log/slog"

	"skillswap/internal/config"
	"skillswap/internal/middleware"

	"gorm.io/gorm"
)

// SchemaStatus describes what ApplySchema would do for a configuration.
type SchemaStatus struct {
	Environment        string
	Driver             string
	WillRunAutoMigrate bool
	WillRunSQL         bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPolicy: AutoMigrate outside production, versioned SQL on postgres.
// Production tables are created by cmd/migrate.
func schemaPolicy(cfg *config.Config) (runAuto bool, runSQL bool) {
	return !cfg.IsProduction(), cfg.DBDriver == "postgres"
}

// AutoMigrate creates or updates every persistent table.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the schema up to date for the configured environment.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runAuto, runSQL := schemaPolicy(cfg)

	if runAuto {
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("env", cfg.Env))
		if err := AutoMigrate(ctx, db); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	if runSQL {
		if err := RunMigrations(ctx, db, GetMigrations()); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports applied and pending migrations without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runAuto, runSQL := schemaPolicy(cfg)
	status := &SchemaStatus{
		Environment:        cfg.Env,
		Driver:             cfg.DBDriver,
		WillRunAutoMigrate: runAuto,
		WillRunSQL:         runSQL,
	}
	if !runSQL {
		return status, nil
	}

	var applied []int
	if db.Migrator().HasTable(&AppliedMigration{}) {
		versions, err := NewLedger(db).Versions(ctx)
		if err != nil {
			return nil, err
		}
		applied = versions
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
