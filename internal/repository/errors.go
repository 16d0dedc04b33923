package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgCodeUniqueViolation      = "23505"
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
)

var (
	ErrDuplicateAmendment = errors.New("amendment already exists")
	ErrNotFound           = gorm.ErrRecordNotFound
)

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateAmendment, pgErr.ConstraintName)
	}
	return err
}

// IsRetryable reports errors after which re-running the whole workflow is
// expected to succeed: lost races on the dedup index and serialization
// failures.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrDuplicateAmendment) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeSerializationFailure || pgErr.Code == pgCodeDeadlockDetected
	}
	return false
}
