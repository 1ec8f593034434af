package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	sqliteUnique      = "UNIQUE constraint failed:"
)

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or sqlite. When constraintName is provided it must also match.
func IsUniqueViolation(err error, constraintName string) bool {
	return IsUniqueViolationOn(err, constraintName, "")
}

// IsUniqueViolationOn is IsUniqueViolation for a constraint on table. sqlite
// reports column indexes as "table.column" instead of the index name, so a
// sqlite error on table matches as well.
func IsUniqueViolationOn(err error, constraintName, table string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value"):
		return constraintName == "" || strings.Contains(msg, constraintName)
	case strings.Contains(msg, sqliteUnique):
		if constraintName == "" || strings.Contains(msg, constraintName) {
			return true
		}
		return table != "" && strings.Contains(msg, sqliteUnique+" "+table+".")
	}
	return false
}
