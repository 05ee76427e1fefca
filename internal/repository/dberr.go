package repository

import (
	"errors"

	"teahaven/internal/apierror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the repositories care about.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// translate maps driver errors into the domain taxonomy:
//   - record not found        → NotFound
//   - lock timeout / deadlock → Contention (retriable)
//   - unique violation        → Conflict (idempotent-success path for callers
//     that anchor on a unique key, e.g. payment_session_id)
//
// Anything else is passed through untouched so callers can wrap it.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected:
			return apierror.Contention("could not acquire row lock, retry the request", err)
		case pgUniqueViolation:
			return apierror.Conflict("duplicate " + pgErr.ConstraintName)
		}
	}
	return err
}

// IsConflict reports whether err is a unique-key violation (already translated
// or raw). Order creation uses this to detect a concurrent webhook delivery.
func IsConflict(err error) bool {
	if apierror.IsCode(err, apierror.CodeConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
