/*
Package attendance provides the core punch-reconciliation engine.

PURPOSE:
  This package turns raw clock-in/clock-out events from biometric and
  access-control devices into per-employee, per-day attendance records:
  matching punches to shift windows, pairing IN/OUT events into duty
  sessions, and deriving a status plus worked-time metrics.

KEY CONCEPTS IN THIS FILE (types.go):
  - RawEvent: An immutable device punch with a monotonic id
  - Employee: Directory entry with shift assignment and week-off days
  - DayRecord: One reconciled (employee, business-day) row, single-session mode
  - MandaysRecord: One reconciled row with up to MaxDutySlots IN/OUT slots
  - Status: The per-day status code ladder (P, HD, IH, A, WW, MP)

DESIGN PRINCIPLES:
  1. Idempotence: Records recompute purely from stored punches and the
     current shift definition; replaying the same events changes nothing.
  2. Business-day attribution: Night-shift sessions belong to the day the
     shift STARTED, even when the OUT punch lands past midnight.
  3. Nullable metrics: Late entry, early exit and overtime are either a
     positive duration or absent. They are never recorded as zero.

SEE ALSO:
  - clock.go: TimeOfDay and Day arithmetic across midnight
  - shift.go: Shift definitions and acceptance windows
  - reconciler.go: The incremental cursor-driven batch runner
*/
package attendance

import (
	"time"
)

// =============================================================================
// RAW EVENTS - Device punches, produced externally, append-only
// =============================================================================

// Direction indicates which side of the door the punch came from.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// RawEvent is a single punch as recorded by the device log.
// IDs are monotonically increasing and unique; the reconciler's cursor
// is defined over them. Timestamps are timezone-normalized naive local
// time: shift matching is wall-clock arithmetic, not instant arithmetic.
type RawEvent struct {
	ID         int64
	EmployeeID string // device enroll id, resolved via EmployeeDirectory
	Timestamp  time.Time
	Direction  Direction
	Device     string // device short name, informational only
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeID string

// Employee is the directory view the engine needs. ShiftName, when set,
// pins the employee to one shift; when empty the matcher tries every
// catalog entry (auto-shift mode).
type Employee struct {
	ID              EmployeeID
	ExternalID      string // id the devices report
	Name            string
	ShiftName       string
	FirstWeeklyOff  *time.Weekday
	SecondWeeklyOff *time.Weekday
}

// =============================================================================
// STATUS CODES
// =============================================================================

type Status string

const (
	StatusPresent           Status = "P"  // met the full-day threshold
	StatusHalfDay           Status = "HD" // between absent and half-day thresholds
	StatusInsufficientHours Status = "IH" // met half-day but not full-day
	StatusAbsent            Status = "A"  // below the absent threshold
	StatusWorkedWeekOff     Status = "WW" // punched on a configured week-off day
	StatusMissedPunch       Status = "MP" // IN without OUT, or OUT without IN
	StatusNone              Status = ""
)

// =============================================================================
// DAY RECORD - Single-session mode (first IN, last OUT)
// =============================================================================

// DayRecord is the reconciled attendance row for one (employee, business
// day). At most one exists per pair. FirstIn and LastOut are times of day
// relative to Day; for night shifts LastOut may logically belong to the
// following calendar date (LastOut < FirstIn).
type DayRecord struct {
	Employee  EmployeeID
	Day       Day
	ShiftName string

	FirstIn *TimeOfDay
	LastOut *TimeOfDay

	TotalTime time.Duration  // zero until both punches are present
	LateEntry *time.Duration // positive or absent, never zero
	EarlyExit *time.Duration
	Overtime  *time.Duration

	Status Status
}

// HasIn reports whether an IN punch has been recorded.
func (r *DayRecord) HasIn() bool { return r.FirstIn != nil }

// HasOut reports whether an OUT punch has been recorded.
func (r *DayRecord) HasOut() bool { return r.LastOut != nil }

// Open reports whether the record is waiting for its OUT punch.
func (r *DayRecord) Open() bool { return r.HasIn() && !r.HasOut() }

// InAt returns the full timestamp of the IN punch.
func (r *DayRecord) InAt() time.Time { return r.Day.At(*r.FirstIn) }

// OutAt returns the full timestamp of the OUT punch, rolling to the next
// calendar date when the OUT time is earlier than the IN time (overnight
// session attributed to the start day).
func (r *DayRecord) OutAt() time.Time {
	out := r.Day.At(*r.LastOut)
	if r.HasIn() && r.LastOut.Before(*r.FirstIn) {
		out = out.AddDate(0, 0, 1)
	}
	return out
}

// =============================================================================
// MANDAYS RECORD - Multi-session mode (up to MaxDutySlots IN/OUT pairs)
// =============================================================================

// MaxDutySlots bounds the number of duty IN/OUT pairs tracked per day.
const MaxDutySlots = 10

// DutySlot is one IN/OUT pair, possibly half-open. Slot indexes are an
// allocation artifact (first-available-empty), not a sequence number.
type DutySlot struct {
	In       *TimeOfDay
	Out      *TimeOfDay
	Duration time.Duration // zero until the slot is closed
}

// Empty reports whether the slot has no punches at all.
func (s *DutySlot) Empty() bool { return s.In == nil && s.Out == nil }

// OpenIn reports whether the slot has an IN waiting for its OUT.
func (s *DutySlot) OpenIn() bool { return s.In != nil && s.Out == nil }

// Complete reports whether both punches are present.
func (s *DutySlot) Complete() bool { return s.In != nil && s.Out != nil }

// MandaysRecord is the reconciled multi-session row for one (employee,
// business day). At most one exists per pair.
type MandaysRecord struct {
	Employee EmployeeID
	Day      Day

	Slots      [MaxDutySlots]DutySlot
	TotalHours time.Duration // sum of completed slot durations
}

// OpenSlot returns the index of the most recently opened slot that is
// still waiting for an OUT, or -1.
func (r *MandaysRecord) OpenSlot() int {
	for i := len(r.Slots) - 1; i >= 0; i-- {
		if r.Slots[i].OpenIn() {
			return i
		}
	}
	return -1
}

// EmptySlot returns the index of the first fully-empty slot, or -1 when
// the day is full.
func (r *MandaysRecord) EmptySlot() int {
	for i := range r.Slots {
		if r.Slots[i].Empty() {
			return i
		}
	}
	return -1
}

// HasInAt reports whether any slot already holds an IN at t. Replayed
// punches are detected by their stored time of day.
func (r *MandaysRecord) HasInAt(t TimeOfDay) bool {
	for i := range r.Slots {
		if r.Slots[i].In != nil && *r.Slots[i].In == t {
			return true
		}
	}
	return false
}

// HasOutAt reports whether any slot already holds an OUT at t.
func (r *MandaysRecord) HasOutAt(t TimeOfDay) bool {
	for i := range r.Slots {
		if r.Slots[i].Out != nil && *r.Slots[i].Out == t {
			return true
		}
	}
	return false
}

// MissedPunchSlots returns the indexes of half-open slots: an IN that
// never paired, or an OUT that arrived with nothing open.
func (r *MandaysRecord) MissedPunchSlots() []int {
	var idx []int
	for i := range r.Slots {
		s := &r.Slots[i]
		if !s.Empty() && !s.Complete() {
			idx = append(idx, i)
		}
	}
	return idx
}

// RecomputeTotal resums completed slot durations. Incomplete slots
// contribute nothing until closed.
func (r *MandaysRecord) RecomputeTotal() {
	total := time.Duration(0)
	for i := range r.Slots {
		if r.Slots[i].Complete() {
			total += r.Slots[i].Duration
		}
	}
	r.TotalHours = total
}

// =============================================================================
// RECONCILIATION RUNS - Audit trail of scheduler/CLI invocations
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run records one ReconcileOnce invocation for audit and UI display.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Processed   int
	Skipped     int
	Status      RunStatus
	Error       string
}
