// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"skillswap/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the Postgres SQLSTATE for a unique index conflict.
const pgUniqueViolation = "23505"

// DefaultPageSize applies when callers pass a non-positive limit.
const DefaultPageSize = 20

// MaxPageSize caps any requested limit.
const MaxPageSize = 100

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// wrapLookupError maps a single-row lookup error to the application taxonomy.
func wrapLookupError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// wrapWriteError maps an insert error, turning unique violations into conflicts.
func wrapWriteError(err error, conflictMessage string) error {
	if isDuplicateKey(err) {
		return models.NewConflictError(conflictMessage)
	}
	return models.NewInternalError(err)
}
