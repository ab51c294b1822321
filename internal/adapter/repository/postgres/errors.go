package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/srgjo27/eventflow/internal/core/domain"
)

const (
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeCheckViolation       pq.ErrorCode = "23514"
)

// mapError translates driver errors into domain errors. Losing a concurrent
// write race becomes ErrTransactionConflict; anything else from the driver is
// reported as ErrStoreUnavailable with the cause kept in the chain.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w", op, domain.ErrTransactionConflict)
		case codeCheckViolation:
			// quantity >= 0 was about to be violated.
			return fmt.Errorf("%s: %w", op, domain.ErrInventoryExhausted)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
