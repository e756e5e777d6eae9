/*
shift.go - Shift definitions and acceptance windows

PURPOSE:
  Defines ShiftDefinition (the configured shift with its tolerance,
  grace, threshold and lunch settings) and the window arithmetic that
  decides which calendar date a punch logically belongs to.

NIGHT SHIFTS:
  A shift whose end time-of-day precedes its start time-of-day crosses
  midnight. Its end instant is start day + 1 at end_time, and a punch
  on the early-morning tail (before start_time on the clock) is
  attributed to the PREVIOUS day's shift.

TOLERANCE vs GRACE:
  The tolerance window decides whether a punch belongs to the shift at
  all. The grace period only decides whether an accepted punch counts
  as late (or an early exit); it is strictly narrower in purpose.

SEE ALSO:
  - matcher.go: Uses WindowFor to match punches against the catalog
  - metrics.go: Uses grace and thresholds to derive metrics and status
*/
package attendance

import "time"

// =============================================================================
// SHIFT DEFINITION
// =============================================================================

// ShiftDefinition is one configured shift. Name is the unique key.
// The three day-status thresholds are nullable: a missing threshold
// disables that rung of the status ladder rather than defaulting to
// zero, which would fabricate false absences.
type ShiftDefinition struct {
	Name      string
	StartTime TimeOfDay
	EndTime   TimeOfDay

	// IN acceptance window around StartTime; OUT-only records use the
	// symmetric window around EndTime.
	ToleranceBeforeStart time.Duration
	ToleranceAfterStart  time.Duration

	GraceAfterStart time.Duration
	GraceBeforeEnd  time.Duration

	AbsentThreshold  *time.Duration
	HalfDayThreshold *time.Duration
	FullDayThreshold *time.Duration

	OvertimeBeforeStart time.Duration
	OvertimeAfterEnd    time.Duration

	LunchDuration         time.Duration
	IncludeLunchInHalfDay bool
	IncludeLunchInFullDay bool
}

// IsNightShift reports whether the shift crosses midnight.
func (s *ShiftDefinition) IsNightShift() bool {
	return s.StartTime > s.EndTime
}

// =============================================================================
// SHIFT WINDOW - A shift's times anchored to a concrete business day
// =============================================================================

// ShiftWindow is a ShiftDefinition projected onto one business day.
type ShiftWindow struct {
	Day   Day // business day the window is anchored to
	Start time.Time
	End   time.Time

	// IN acceptance interval
	WindowOpen  time.Time
	WindowClose time.Time

	StartWithGrace time.Time // punches after this are late
	EndWithGrace   time.Time // punches before this are early exits
}

// WindowFor anchors the shift to the business day a punch at t would
// belong to. For a night shift, a wall-clock time before StartTime is
// the early-morning tail of the previous day's shift.
func (s *ShiftDefinition) WindowFor(t time.Time) ShiftWindow {
	day := DayOf(t)
	if s.IsNightShift() && TimeOfDayOf(t) < s.StartTime {
		day = day.AddDays(-1)
	}
	return s.WindowOn(day)
}

// WindowOn anchors the shift to an explicit business day.
func (s *ShiftDefinition) WindowOn(day Day) ShiftWindow {
	start := day.At(s.StartTime)
	endDay := day
	if s.IsNightShift() {
		endDay = day.AddDays(1)
	}
	end := endDay.At(s.EndTime)

	return ShiftWindow{
		Day:            day,
		Start:          start,
		End:            end,
		WindowOpen:     start.Add(-s.ToleranceBeforeStart),
		WindowClose:    start.Add(s.ToleranceAfterStart),
		StartWithGrace: start.Add(s.GraceAfterStart),
		EndWithGrace:   end.Add(-s.GraceBeforeEnd),
	}
}

// AcceptsIn reports whether an IN punch at t falls inside the IN
// acceptance window.
func (w ShiftWindow) AcceptsIn(t time.Time) bool {
	return !t.Before(w.WindowOpen) && !t.After(w.WindowClose)
}

// AcceptsOut reports whether an OUT punch at t falls inside the
// symmetric acceptance window around the shift end. Used to create
// OUT-only records for employees who never punched in.
func (w ShiftWindow) AcceptsOut(t time.Time, s *ShiftDefinition) bool {
	open := w.End.Add(-s.ToleranceBeforeStart)
	close := w.End.Add(s.ToleranceAfterStart)
	return !t.Before(open) && !t.After(close)
}
