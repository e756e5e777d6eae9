/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the reconciliation logic and its
  collaborators: the device event log, the employee directory, the
  shift store, and the attendance store that persists reconciled rows
  together with the cursor.

CURSOR CONTRACT:
  The cursor (last fully reconciled event id) advances only inside the
  same batch write that persists the derived records. If any write in
  the batch fails, the whole batch rolls back and the cursor does not
  move, so the batch is retried in full on the next run.

IMPLEMENTATIONS:
  - store/sqlite: Production store (events, employees, shifts,
    attendance, mandays, cursor, runs) in one SQLite database
  - store/postgres: pgx-backed EventStore over the replicated device
    log table
  - attendance/store: In-memory implementations for tests and dev
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// EVENT LOG - Read-only, ordered by monotonic id
// =============================================================================

// EventStore is the raw device log. Events are immutable and ids are
// strictly increasing.
type EventStore interface {
	// FetchEventsAfter returns up to limit events with id > after,
	// ordered ascending by id.
	FetchEventsAfter(ctx context.Context, after int64, limit int) ([]RawEvent, error)

	// LastIDBefore returns the highest event id with a timestamp strictly
	// before t, or 0 if none exists. Used by administrative cursor resets.
	LastIDBefore(ctx context.Context, t time.Time) (int64, error)
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

type EmployeeDirectory interface {
	// ByExternalID resolves the id reported by the devices.
	// Returns ErrNotFound for unknown employees.
	ByExternalID(ctx context.Context, externalID string) (Employee, error)

	// All lists every employee. Used by absentee marking.
	All(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// SHIFT STORE & CATALOG
// =============================================================================

// ShiftStore persists shift definitions.
type ShiftStore interface {
	AllShifts(ctx context.Context) ([]ShiftDefinition, error)
	ShiftByName(ctx context.Context, name string) (ShiftDefinition, error)
	SaveShift(ctx context.Context, s ShiftDefinition) error
}

// ShiftCatalog is the read-mostly view the matcher consumes. The cached
// implementation is invalidated explicitly on shift mutation; there is
// no implicit global state.
type ShiftCatalog interface {
	All(ctx context.Context) ([]ShiftDefinition, error)
	ByName(ctx context.Context, name string) (ShiftDefinition, error)

	// Invalidate drops any cached view. The caller owning the
	// change-notification mechanism (API handler, admin CLI) calls this
	// after a shift save or delete.
	Invalidate()
}

// =============================================================================
// ATTENDANCE STORE - Durable per-day records, keyed by (employee, day)
// =============================================================================

// AttendanceStore reads and writes reconciled rows. Upserts outside a
// batch exist for administrative operations (absentee marking); the
// reconciler itself always writes through WithBatch.
type AttendanceStore interface {
	GetDay(ctx context.Context, employee EmployeeID, day Day) (DayRecord, error)
	ListDays(ctx context.Context, employee EmployeeID, from, to Day) ([]DayRecord, error)
	UpsertDay(ctx context.Context, rec DayRecord) error

	GetMandays(ctx context.Context, employee EmployeeID, day Day) (MandaysRecord, error)
	UpsertMandays(ctx context.Context, rec MandaysRecord) error
}

// CursorStore tracks the last fully reconciled event id.
type CursorStore interface {
	// Current returns the last committed id, 0 if unset.
	Current(ctx context.Context) (int64, error)

	// SetCursor overwrites the cursor. Only administrative resets call
	// this directly; batch advancement goes through Batch.AdvanceCursor.
	SetCursor(ctx context.Context, id int64) error
}

// Batch is the write surface available inside one atomic batch.
type Batch interface {
	UpsertDay(ctx context.Context, rec DayRecord) error
	UpsertMandays(ctx context.Context, rec MandaysRecord) error
	AdvanceCursor(ctx context.Context, id int64) error
}

// BatchStore combines the read surface with atomic batch writes.
// WithBatch executes fn inside a transaction: if fn returns an error,
// every write (including the cursor advance) rolls back.
type BatchStore interface {
	AttendanceStore
	CursorStore

	WithBatch(ctx context.Context, fn func(Batch) error) error
}

// =============================================================================
// RUN STORE - Reconciliation run audit records
// =============================================================================

type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
