package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE and PostgREST codes the access layer reacts to.
const (
	CodeInvalidTextRepresentation = "22P02"
	CodeUniqueViolation           = "23505"
	CodeUndefinedColumn           = "42703"
	CodeUndefinedFunction         = "42883"
	CodeNoRows                    = "PGRST116"
)

// SQLState returns the Postgres error code carried by err, or "".
func SQLState(err error) string {
	if err == nil {
		return ""
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	return ""
}

// IsNotFound reports a "no rows" outcome, which single-row lookups treat as an empty state.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return strings.Contains(err.Error(), CodeNoRows)
}

// IsUniqueViolation reports a duplicate-key error.
func IsUniqueViolation(err error) bool {
	if SQLState(err) == CodeUniqueViolation || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

// IsInvalidUUID reports a uuid syntax error raised by the database.
func IsInvalidUUID(err error) bool {
	if SQLState(err) == CodeInvalidTextRepresentation {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "invalid input syntax for type uuid")
}

// IsUndefinedColumn reports an unknown column in a query.
func IsUndefinedColumn(err error) bool {
	if SQLState(err) == CodeUndefinedColumn {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "column") && strings.Contains(err.Error(), "does not exist")
}

// IsUndefinedFunction reports a remote procedure that is not installed.
func IsUndefinedFunction(err error) bool {
	if SQLState(err) == CodeUndefinedFunction {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "function") && strings.Contains(err.Error(), "does not exist")
}
