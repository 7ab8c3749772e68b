// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"

	"skillswap/internal/middleware"
)

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *slog.Logger
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{
		tableName: tableName,
		logger:    middleware.Logger,
	}
}

// LogWrite records a mutating operation at debug level.
func (l *RepoLogger) LogWrite(ctx context.Context, operation string, attrs ...slog.Attr) {
	args := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	l.logger.DebugContext(ctx, "repository write", args...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
