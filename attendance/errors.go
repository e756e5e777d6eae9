/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All engine errors in one place. Per-event errors (unknown employee,
  no matching shift, invalid pairing) are local and non-fatal: the
  event did not change state and the batch continues. Per-batch errors
  (persistence) are fatal to the run and must not partially commit.

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, attendance.ErrInvalidPairing) {
        // log the warning, keep the slot open
    }
*/
package attendance

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownEmployee is returned when an event references an employee
	// the directory does not know. The event is skipped and the cursor
	// still advances past it (forward progress over completeness).
	ErrUnknownEmployee = errors.New("unknown employee")

	// ErrNoMatchingShift is returned when a punch falls outside every
	// candidate shift's acceptance window.
	ErrNoMatchingShift = errors.New("no matching shift")

	// ErrInvalidPairing is returned when an OUT punch precedes or equals
	// its candidate IN. The slot is left open; data is never silently
	// corrected.
	ErrInvalidPairing = errors.New("invalid punch pairing")

	// ErrNotFound is returned by lookups for missing records, shifts or
	// employees.
	ErrNotFound = errors.New("not found")

	// ErrCatalogInconsistency is returned when a shift definition lacks a
	// threshold required by the branch being evaluated. The affected
	// metric is left unset rather than defaulted to zero.
	ErrCatalogInconsistency = errors.New("shift catalog inconsistency")

	// ErrRunInProgress is returned when ReconcileOnce is invoked while a
	// previous run is still executing. Overlapping runs are suppressed,
	// never queued.
	ErrRunInProgress = errors.New("reconciliation already in progress")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownEmployeeError identifies the event that referenced a missing
// directory entry.
type UnknownEmployeeError struct {
	EventID    int64
	ExternalID string
}

func (e *UnknownEmployeeError) Error() string {
	return fmt.Sprintf("event %d: employee %q not in directory", e.EventID, e.ExternalID)
}

func (e *UnknownEmployeeError) Unwrap() error { return ErrUnknownEmployee }

// InvalidPairingError describes an OUT that could not close its IN.
type InvalidPairingError struct {
	Employee EmployeeID
	Day      Day
	In       time.Time
	Out      time.Time
}

func (e *InvalidPairingError) Error() string {
	return fmt.Sprintf("employee %s day %s: OUT %s not after IN %s",
		e.Employee, e.Day, e.Out.Format("15:04:05"), e.In.Format("15:04:05"))
}

func (e *InvalidPairingError) Unwrap() error { return ErrInvalidPairing }

// NoMatchingShiftError records which punch failed every candidate window.
type NoMatchingShiftError struct {
	Employee  EmployeeID
	At        time.Time
	Direction Direction
}

func (e *NoMatchingShiftError) Error() string {
	return fmt.Sprintf("employee %s: %s punch at %s matched no shift window",
		e.Employee, e.Direction, e.At.Format("2006-01-02 15:04:05"))
}

func (e *NoMatchingShiftError) Unwrap() error { return ErrNoMatchingShift }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsSkippable reports whether the error is a per-event condition the
// batch may advance past.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrUnknownEmployee) ||
		errors.Is(err, ErrNoMatchingShift) ||
		errors.Is(err, ErrInvalidPairing)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
