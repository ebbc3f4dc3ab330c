// Package repository implements the data access layer for the application.
package repository

import (
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"blogosphere/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isUniqueConstraintError reports whether err is a unique index violation on
// PostgreSQL or SQLite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// isUnavailableError reports whether err means the store could not be reached.
func isUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// translate maps driver errors onto the application error taxonomy. AppErrors
// and nil pass through unchanged.
func translate(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case isUniqueConstraintError(err):
		return models.NewConflictError(conflictMsg)
	case isUnavailableError(err):
		return models.NewServiceUnavailableError("Database service unavailable", err)
	default:
		return models.NewInternalError(err)
	}
}
