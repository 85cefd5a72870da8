package postgres

import (
	"errors"
	"fmt"

	"github.com/dmehra2102/ListForge/internal/domain"
	"github.com/lib/pq"
)

// Postgres error codes that indicate a competing writer on the same rows.
var conflictCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"23505": true, // unique_violation
	"55P03": true, // lock_not_available
}

const foreignKeyViolation pq.ErrorCode = "23503"

// storageError wraps a database error as a storage failure, additionally
// marking it as a conflict when Postgres reports a concurrency error, or as
// referenced when a foreign key blocks a delete.
func storageError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case conflictCodes[pqErr.Code]:
			return fmt.Errorf("%w: %w: failed to %s: %w", domain.ErrStorage, domain.ErrConflict, op, err)
		case pqErr.Code == foreignKeyViolation:
			return fmt.Errorf("%w: %w: failed to %s: %w", domain.ErrStorage, domain.ErrReferenced, op, err)
		}
	}
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrStorage, op, err)
}
