/*
mandays.go - Multi-session duty builder (up to MaxDutySlots pairs/day)

PURPOSE:
  Accumulates punches into ordered duty slots per (employee, business
  day). INs open slots; OUTs close the most recently opened slot that
  is still waiting. Slot indexes are first-available-empty allocation,
  not a chronological identity.

PAIRING RULES:
  - A punch whose time of day already sits in a slot is a replayed
    event (cursor reset), ignored so recomputation stays idempotent.
  - IN with an open slot already present: duplicate, ignored.
  - OUT with no open slot on the day: the immediately preceding day is
    searched for an open slot (overnight spans); failing that, the OUT
    lands alone in a fresh slot as a missed punch.
  - OUT not strictly after the open slot's IN: rejected, slot stays
    open, the event is reported as an invalid pairing.
  - Slot duration adds one day when OUT < IN on the clock (slot crossed
    midnight).
*/
package attendance

import "time"

// MandaysBuilder applies punches to multi-slot day records.
type MandaysBuilder struct{}

// ApplyIn opens a new duty slot, unless one is already open (duplicate
// IN) or the day is full. Returns whether the record changed.
func (MandaysBuilder) ApplyIn(rec *MandaysRecord, at time.Time) bool {
	t := TimeOfDayOf(at)
	if rec.HasInAt(t) {
		// Replayed punch: some slot already holds this IN.
		return false
	}
	if rec.OpenSlot() >= 0 {
		// Consecutive IN: the open slot keeps its original IN.
		return false
	}
	i := rec.EmptySlot()
	if i < 0 {
		return false
	}
	rec.Slots[i].In = &t
	return true
}

// ApplyOut closes the most recently opened slot. When no slot is open
// the OUT is stored alone in a fresh slot (missed punch) so the day
// still shows the event. Returns whether the record changed.
func (MandaysBuilder) ApplyOut(rec *MandaysRecord, at time.Time) (bool, error) {
	t := TimeOfDayOf(at)
	if rec.HasOutAt(t) {
		// Replayed punch: some slot already holds this OUT.
		return false, nil
	}
	i := rec.OpenSlot()
	if i < 0 {
		j := rec.EmptySlot()
		if j < 0 {
			return false, nil
		}
		rec.Slots[j].Out = &t
		return true, nil
	}

	slot := &rec.Slots[i]
	in := rec.Day.At(*slot.In)
	// Validity is judged on the punch INSTANT, not the clock: an OUT whose
	// timestamp is not strictly after the open IN is rejected even though
	// midnight rollover could make the clock arithmetic work out.
	if !at.After(in) {
		return false, &InvalidPairingError{
			Employee: rec.Employee, Day: rec.Day, In: in, Out: at,
		}
	}

	slot.Out = &t
	slot.Duration = slotDuration(*slot.In, t)
	rec.RecomputeTotal()
	return true, nil
}

// slotDuration computes duty_out - duty_in from stored times of day,
// adding one day when the slot crossed midnight. It is the pure function
// replay recomputation relies on.
func slotDuration(in, out TimeOfDay) time.Duration {
	d := out.Duration() - in.Duration()
	if d < 0 {
		d += 24 * time.Hour
	}
	return d
}
