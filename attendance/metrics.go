/*
metrics.go - Derived metrics and the status ladder

PURPOSE:
  A pure transform from a day record's stored punches plus the shift's
  current definition to total time, late entry, early exit, overtime
  and the status code. Because it only reads stored punches, replaying
  the same events always reproduces the same record byte for byte.

NULL-vs-ZERO:
  Late entry, early exit and overtime are either a positive duration
  or absent. "No late entry" and "exactly on time" are deliberately
  indistinguishable from "never computed"; downstream reporting
  treats the absent field as the normal case.

STATUS PRIORITY:
  1. MP   - a half-open session (IN without OUT, or OUT without IN)
            overrides everything else
  2. WW   - any punch on a configured week-off day
  3. A / HD / IH / P - the threshold ladder over total time; a rung
            whose threshold is missing from the shift definition is
            skipped rather than treated as zero
*/
package attendance

import "time"

// MetricCalculator derives metrics and status for day records.
type MetricCalculator struct {
	WeekOff WeekOffCalendar
}

// Compute rewrites every derived field of rec from its stored punches
// and the shift definition. Safe to call repeatedly; the inputs fully
// determine the outputs.
func (mc MetricCalculator) Compute(rec *DayRecord, shift *ShiftDefinition, emp Employee) {
	rec.TotalTime = 0
	rec.LateEntry = nil
	rec.EarlyExit = nil
	rec.Overtime = nil

	w := shift.WindowOn(rec.Day)

	if rec.HasIn() {
		in := rec.InAt()
		if in.After(w.StartWithGrace) {
			rec.LateEntry = durationPtr(in.Sub(w.Start))
		}
	}

	if rec.HasIn() && rec.HasOut() {
		in := rec.InAt()
		out := rec.OutAt()

		total := out.Sub(in)
		if shift.IncludeLunchInHalfDay || shift.IncludeLunchInFullDay {
			total -= shift.LunchDuration
		}
		rec.TotalTime = total

		if out.Before(w.EndWithGrace) {
			rec.EarlyExit = durationPtr(w.End.Sub(out))
		}

		var overtime time.Duration
		if in.Before(w.Start.Add(-shift.OvertimeBeforeStart)) {
			overtime += w.Start.Sub(in)
		}
		if out.After(w.End.Add(shift.OvertimeAfterEnd)) {
			overtime += out.Sub(w.End)
		}
		rec.Overtime = durationPtr(overtime)
	}

	rec.Status = mc.status(rec, shift, emp)
}

func (mc MetricCalculator) status(rec *DayRecord, shift *ShiftDefinition, emp Employee) Status {
	// A half-open session is a missed punch no matter what the totals say.
	if rec.HasIn() != rec.HasOut() {
		return StatusMissedPunch
	}
	if !rec.HasIn() && !rec.HasOut() {
		return rec.Status // administrative rows (absentee marking) keep theirs
	}

	if mc.WeekOff.IsWeekOff(emp, rec.Day) {
		return StatusWorkedWeekOff
	}

	total := rec.TotalTime
	if shift.AbsentThreshold != nil && total < *shift.AbsentThreshold {
		return StatusAbsent
	}
	if shift.HalfDayThreshold != nil && total < *shift.HalfDayThreshold {
		return StatusHalfDay
	}
	if shift.FullDayThreshold != nil && total < *shift.FullDayThreshold {
		return StatusInsufficientHours
	}
	return StatusPresent
}
