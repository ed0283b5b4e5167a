package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotApplied is returned by conditional updates whose guard matched no
// row.
var ErrNotApplied = errors.New("conditional update not applied")

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a unique constraint,
// either translated by gorm or raw from postgres.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// ConstraintName returns the violated constraint for postgres errors.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
