package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reservas-events/backend/pkg/apperr"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolation)
}

// IsCheckViolation reports whether err is a check constraint violation.
func IsCheckViolation(err error) bool {
	return hasCode(err, checkViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Translate maps a pgx error to an apperr value. entity names the row kind in messages.
// Errors that already carry an apperr code pass through unchanged.
func Translate(err error, entity string) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFound("%s not found", entity)
	case IsUniqueViolation(err):
		return apperr.Conflict("%s already exists", entity)
	case IsForeignKeyViolation(err):
		return apperr.Conflict("%s references a missing or protected record", entity)
	default:
		return apperr.Internal(err, "database error")
	}
}
