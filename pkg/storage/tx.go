package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrTransientConflict marks a race the store may win on retry: a
// duplicate-key collision on a generated identifier, or a serialization
// failure under concurrent writers against the same rows.
var ErrTransientConflict = errors.New("transient store conflict")

// Postgres error codes retried as transient.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
)

// IsRetryable reports whether the error is in the known transient class.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation || pqErr.Code == pqSerializationFailure
	}
	// The sqlite driver used for local development reports constraint
	// violations as plain strings.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RunTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func RunTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RetryTransient runs op, and runs it once more if the first attempt failed
// with a retryable error. Any second failure propagates as-is.
func RetryTransient(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !IsRetryable(err) {
		return err
	}
	return op(ctx)
}
