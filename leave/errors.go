/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses.

ERROR CATEGORIES:
  1. Validation errors - bad hours, missing fields, duplicate code/name
  2. Locked errors - employee touching approved entries or past dates
  3. Not-found errors - missing user/date where existence is required
  4. Over-allocation - soft gate requiring explicit confirmation
  5. Store errors - persistence failures

USAGE:
  if errors.Is(err, leave.ErrLocked) { ... }

  var oa *leave.OverAllocationError
  if errors.As(err, &oa) { // re-invoke with confirmed=true }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for input the engine refuses before any write:
	// hours outside [0,8], missing required fields, duplicate code or name.
	ErrValidation = errors.New("validation failed")

	// ErrLocked is returned when an employee tries to modify an approved
	// entry or any entry on a past date. No write occurs.
	ErrLocked = errors.New("entry locked")

	// ErrNotFound is returned when a referenced user, date or entry does not
	// exist where existence is required.
	ErrNotFound = errors.New("not found")

	// ErrOverAllocation is returned when an admin edit would push a user's
	// approved hours for one day over HoursPerDay and the caller has not
	// confirmed. It is a warning gate, not a hard invariant.
	ErrOverAllocation = errors.New("over-allocation requires confirmation")

	// ErrStore is returned when the underlying persistence operation failed.
	// The engine does not retry; completed steps of a cascade are not rolled
	// back.
	ErrStore = errors.New("store operation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// HoursError reports an hours value outside the accepted [0,8] range.
type HoursError struct {
	Hours int
}

func (e *HoursError) Error() string {
	return fmt.Sprintf("hours must be between 0 and %d, got %d", HoursPerDay, e.Hours)
}

func (e *HoursError) Unwrap() error { return ErrValidation }

// FieldError reports a missing or malformed required field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// DuplicateError reports a uniqueness violation on a user field where
// uniqueness is assumed (name for admin lookup, code for login).
type DuplicateError struct {
	Field string // "name" or "code"
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Field, e.Value)
}

func (e *DuplicateError) Unwrap() error { return ErrValidation }

// LockReason says why an employee mutation was refused.
type LockReason string

const (
	LockApprovedEntry LockReason = "approved_entry"
	LockPastDate      LockReason = "past_date"
)

// LockedError reports a refused employee mutation. The targeted entry is
// left unchanged.
type LockedError struct {
	Date   Date
	UserID UserID
	Reason LockReason
}

func (e *LockedError) Error() string {
	switch e.Reason {
	case LockPastDate:
		return fmt.Sprintf("date %s is in the past", e.Date)
	default:
		return fmt.Sprintf("entry for %s on %s is approved and locked", e.UserID, e.Date)
	}
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// OverAllocationError reports that an admin edit would give the user more
// than HoursPerDay approved hours on one day. The edit proceeds when the
// caller retries with confirmation.
type OverAllocationError struct {
	Date           Date
	UserID         UserID
	ProjectedHours int
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("user %s would have %dh on %s", e.UserID, e.ProjectedHours, e.Date)
}

func (e *OverAllocationError) Unwrap() error { return ErrOverAllocation }

// StoreError wraps a persistence failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return ErrStore }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrLocked) ||
		errors.Is(err, ErrOverAllocation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
