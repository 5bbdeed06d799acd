package service

import (
	"fmt"

	"github.com/google/uuid"
)

// Error taxonomy for the ledger engine. Every failure path surfaces one
// of these; callers branch with errors.As.

// ValidationError reports malformed or out-of-range input. It is always
// returned before any write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InsufficientStockError reports a reconciliation that would drive the
// product quantity negative. The product is left untouched.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: have %d, need %d",
		e.ProductID, e.Available, e.Requested)
}

// ConflictError reports that concurrent reconciliations on the same
// product exhausted the bounded retries. Callers may retry the request.
type ConflictError struct {
	ProductID uuid.UUID
	Attempts  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update on product %s, gave up after %d attempts",
		e.ProductID, e.Attempts)
}

// PersistenceError wraps an underlying storage failure after which
// nothing was committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
