// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skillswap/internal/config"
	"skillswap/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queryLogger sends GORM's query log through slog. Failed and slow queries
// are always reported; every query is logged only at logger.Info.
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger(l *slog.Logger) logger.Interface {
	return &queryLogger{log: l, level: logger.Warn, slow: 200 * time.Millisecond}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *q
	c.level = level
	return &c
}

func (q *queryLogger) emit(ctx context.Context, at logger.LogLevel, lvl slog.Level, msg string, data []interface{}) {
	if q.level >= at {
		q.log.Log(ctx, lvl, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	q.emit(ctx, logger.Info, slog.LevelInfo, msg, data)
}

func (q *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	q.emit(ctx, logger.Warn, slog.LevelWarn, msg, data)
}

func (q *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	q.emit(ctx, logger.Error, slog.LevelError, msg, data)
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	took := time.Since(begin)

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= logger.Error:
		lvl, msg = slog.LevelError, "query failed"
	case q.slow > 0 && took > q.slow && q.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "slow query"
	case q.level >= logger.Info:
		lvl, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("took", took)}
	if lvl == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.log.LogAttrs(ctx, lvl, msg, attrs...)
}

// PostgresDSN builds the connection string, preferring DATABASE_URL.
func PostgresDSN(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode)
}

// Open opens a connection for the configured driver without touching the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		// foreign keys are off by default in sqlite
		dialector = sqlite.Open(cfg.DBPath + "?_foreign_keys=on")
	default:
		dialector = postgres.Open(PostgresDSN(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newQueryLogger(middleware.Logger),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql.DB: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent requests
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// Connect opens the database and applies the schema policy for the environment.
func Connect(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	middleware.Logger.Info("Database connected successfully", slog.String("driver", cfg.DBDriver))

	if err := ApplySchema(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Ping checks that the database answers within the context deadline.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
