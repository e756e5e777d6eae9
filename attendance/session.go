/*
session.go - Single-session duty builder (first IN, last OUT)

PURPOSE:
  Accumulates matched punches into one duty session per (employee,
  business day): the first accepted IN opens the record, the latest
  valid OUT closes it. Duplicate INs never overwrite an existing first
  IN; an OUT that is not strictly later than the stored IN (or than the
  already-stored OUT) is rejected rather than corrupting the record.
  An IN arriving over an orphan OUT that is not strictly later than the
  IN drops the orphan (day shifts only): pairing it would fabricate a
  near-24-hour overnight session.

SEE ALSO:
  - mandays.go: Multi-session mode (up to MaxDutySlots pairs per day)
  - metrics.go: Recomputes metrics after every accepted punch
*/
package attendance

import "time"

// SessionBuilder applies matched punches to single-session day records.
// It is stateless; all state lives in the records themselves.
type SessionBuilder struct{}

// ApplyIn records the IN punch. The first IN of the day wins: a later
// duplicate IN leaves the record untouched. Returns whether the record
// changed.
func (SessionBuilder) ApplyIn(rec *DayRecord, m Match, at time.Time) bool {
	if rec.HasIn() {
		// Duplicate IN punch, keep the first.
		return false
	}
	t := TimeOfDayOf(at)
	rec.FirstIn = &t
	rec.ShiftName = m.Shift.Name
	if rec.HasOut() && !m.Shift.IsNightShift() && !rec.Day.At(*rec.LastOut).After(at) {
		// The stored OUT is a clock-skewed orphan at or before this IN,
		// not a session close. Drop it so the session stays open; only a
		// night shift may legitimately end earlier on the clock.
		rec.LastOut = nil
	}
	return true
}

// ApplyOut records the OUT punch. The OUT must be strictly after the
// stored IN in the combined (date, time) sense, and strictly after any
// previously stored OUT; otherwise it is rejected with ErrInvalidPairing
// and the record is left as it was.
func (SessionBuilder) ApplyOut(rec *DayRecord, at time.Time) (bool, error) {
	if rec.HasIn() {
		inAt := rec.InAt()
		if !at.After(inAt) {
			return false, &InvalidPairingError{
				Employee: rec.Employee, Day: rec.Day, In: inAt, Out: at,
			}
		}
	}
	if rec.HasOut() && !at.After(rec.OutAt()) {
		// An earlier or equal OUT never overwrites a later last OUT.
		return false, nil
	}

	t := TimeOfDayOf(at)
	rec.LastOut = &t
	return true, nil
}
