/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The api package maps them onto HTTP statuses; stores wrap driver errors
  with ErrPersistence / ErrConflict / ErrNotFound.

ERROR CATEGORIES:
  1. Client errors - ValidationError, ErrMissingLines, ImbalanceError, ErrInvalidRange
  2. Lookup errors - ErrNotFound, ErrConflict
  3. Store errors  - ErrPersistence, PartialWriteError, RollbackError

USAGE:
    if errors.Is(err, ledger.ErrImbalance) {
        var imb *ledger.ImbalanceError
        errors.As(err, &imb) // imb.Debit, imb.Credit
    }

SEE ALSO:
  - journal.go: raises ImbalanceError and PartialWriteError
  - api/handlers.go: statusFor() maps these onto HTTP
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrMissingLines is returned when a journal entry has no lines.
	ErrMissingLines = errors.New("journal entry has no lines")

	// ErrImbalance is returned when debits and credits differ.
	ErrImbalance = errors.New("journal entry is not balanced")

	// ErrInvalidRange is returned when a report's end date is not after its start date.
	ErrInvalidRange = errors.New("invalid date range: end must be after start")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for duplicate codes and deletes of referenced rows.
	ErrConflict = errors.New("conflict")

	// ErrPersistence is returned for store-level failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrPartialWrite is returned when a multi-step commit failed midway.
	ErrPartialWrite = errors.New("partial write")

	// ErrDataIntegrity means a failed write could not be rolled back.
	// The ledger needs manual reconciliation.
	ErrDataIntegrity = errors.New("data integrity compromised")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ImbalanceError carries the totals that failed to match.
type ImbalanceError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("debits (%s) != credits (%s)", e.Debit.String(), e.Credit.String())
}

func (e *ImbalanceError) Unwrap() error {
	return ErrImbalance
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RollbackError is returned by a TxStore when fn failed and the rollback
// failed too.
type RollbackError struct {
	Err         error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Err, e.RollbackErr)
}

func (e *RollbackError) Unwrap() []error {
	return []error{ErrDataIntegrity, e.Err}
}

// PartialWriteError reports a journal commit that failed after the header
// was written. RolledBack is false when the store could not undo it.
type PartialWriteError struct {
	EntryID    EntryID
	Stage      string
	RolledBack bool
	Err        error
}

func (e *PartialWriteError) Error() string {
	state := "rolled back"
	if !e.RolledBack {
		state = "ROLLBACK FAILED, manual reconciliation required"
	}
	return fmt.Sprintf("partial write of journal entry %d at %s: %v (%s)", e.EntryID, e.Stage, e.Err, state)
}

func (e *PartialWriteError) Unwrap() []error {
	if e.RolledBack {
		return []error{ErrPartialWrite, e.Err}
	}
	return []error{ErrPartialWrite, ErrDataIntegrity, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Persistence wraps a store failure so it matches ErrPersistence.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMissingLines) ||
		errors.Is(err, ErrImbalance) ||
		errors.Is(err, ErrInvalidRange)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for duplicate or still-referenced rows.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
