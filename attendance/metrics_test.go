package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitali/attendance-engine/attendance"
)

// computed builds a record for the given punches and runs Compute over it.
func computed(t *testing.T, shift attendance.ShiftDefinition, emp attendance.Employee, in, out time.Time) *attendance.DayRecord {
	t.Helper()
	var b attendance.SessionBuilder
	w := shift.WindowFor(in)
	rec := &attendance.DayRecord{Employee: emp.ID, Day: w.Day}
	require.True(t, b.ApplyIn(rec, attendance.Match{Shift: shift, Window: w}, in))
	if !out.IsZero() {
		changed, err := b.ApplyOut(rec, out)
		require.NoError(t, err)
		require.True(t, changed)
	}
	var mc attendance.MetricCalculator
	mc.Compute(rec, &shift, emp)
	return rec
}

func TestCompute_OnTimeFullDay(t *testing.T) {
	shift := dayShift()
	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 17, 30))

	assert.Equal(t, 8*time.Hour+30*time.Minute, rec.TotalTime)
	assert.Nil(t, rec.LateEntry)
	assert.Nil(t, rec.EarlyExit)
	assert.Nil(t, rec.Overtime)
	assert.Equal(t, attendance.StatusPresent, rec.Status)
}

func TestCompute_LateEntryMeasuredFromShiftStart(t *testing.T) {
	// Grace decides WHETHER the entry is late; the amount is measured
	// from the shift start, not from the end of grace.
	shift := dayShift() // grace 10m

	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 25), at(2024, time.January, 10, 17, 30))
	require.NotNil(t, rec.LateEntry)
	assert.Equal(t, 25*time.Minute, *rec.LateEntry)

	// Inside grace: no late entry at all
	rec = computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 10), at(2024, time.January, 10, 17, 30))
	assert.Nil(t, rec.LateEntry)
}

func TestCompute_EarlyExit(t *testing.T) {
	shift := dayShift() // grace before end 10m

	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 16, 30))
	require.NotNil(t, rec.EarlyExit)
	assert.Equal(t, time.Hour, *rec.EarlyExit)

	// Inside the end grace: not early
	rec = computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 17, 25))
	assert.Nil(t, rec.EarlyExit)
}

func TestCompute_OvertimeBothEnds(t *testing.T) {
	shift := dayShift() // overtime triggers 30m beyond either end

	// 1h before start plus 1h after end
	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 8, 0), at(2024, time.January, 10, 18, 30))
	require.NotNil(t, rec.Overtime)
	assert.Equal(t, 2*time.Hour, *rec.Overtime)

	// Inside both trigger margins: no overtime recorded
	rec = computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 8, 45), at(2024, time.January, 10, 17, 50))
	assert.Nil(t, rec.Overtime)
}

func TestCompute_LunchDeduction(t *testing.T) {
	shift := dayShift()
	shift.LunchDuration = 30 * time.Minute
	shift.IncludeLunchInFullDay = true

	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 17, 30))
	assert.Equal(t, 8*time.Hour, rec.TotalTime)
}

func TestCompute_ThresholdLadder(t *testing.T) {
	// absent < 4h, half-day < 6h, insufficient < 8h, else present
	shift := dayShift()
	emp := attendance.Employee{ID: "emp-1"}

	cases := []struct {
		name string
		out  time.Time
		want attendance.Status
	}{
		{"3h is absent", at(2024, time.January, 10, 12, 0), attendance.StatusAbsent},
		{"5h is half day", at(2024, time.January, 10, 14, 0), attendance.StatusHalfDay},
		{"7h is insufficient hours", at(2024, time.January, 10, 16, 0), attendance.StatusInsufficientHours},
		{"9h is present", at(2024, time.January, 10, 18, 0), attendance.StatusPresent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := computed(t, shift, emp, at(2024, time.January, 10, 9, 0), tc.out)
			assert.Equal(t, tc.want, rec.Status)
		})
	}
}

func TestCompute_MissingThresholdSkipsRung(t *testing.T) {
	// A nil threshold disables its rung instead of acting as zero.
	shift := dayShift()
	shift.AbsentThreshold = nil

	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 12, 0))
	assert.Equal(t, attendance.StatusHalfDay, rec.Status, "3h falls through to the half-day rung")

	shift.HalfDayThreshold = nil
	shift.FullDayThreshold = nil
	rec = computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 12, 0))
	assert.Equal(t, attendance.StatusPresent, rec.Status, "no rung left to fail")
}

func TestCompute_MissedPunchOverridesLadder(t *testing.T) {
	// IN with no OUT is MP no matter what the thresholds would say.
	shift := dayShift()
	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 0), time.Time{})

	assert.Equal(t, attendance.StatusMissedPunch, rec.Status)
	assert.Equal(t, time.Duration(0), rec.TotalTime)
}

func TestCompute_WorkedWeekOff(t *testing.T) {
	shift := dayShift()
	wednesday := time.Wednesday // 2024-01-10 is a Wednesday
	emp := attendance.Employee{ID: "emp-1", FirstWeeklyOff: &wednesday}

	rec := computed(t, shift, emp,
		at(2024, time.January, 10, 9, 0), at(2024, time.January, 10, 17, 30))
	assert.Equal(t, attendance.StatusWorkedWeekOff, rec.Status)

	// Any other weekday is unaffected
	rec = computed(t, shift, emp,
		at(2024, time.January, 11, 9, 0), at(2024, time.January, 11, 17, 30))
	assert.Equal(t, attendance.StatusPresent, rec.Status)
}

func TestCompute_DefaultWeekOffDays(t *testing.T) {
	shift := dayShift()
	mc := attendance.MetricCalculator{
		WeekOff: attendance.WeekOffCalendar{DefaultDays: []time.Weekday{time.Sunday}},
	}
	emp := attendance.Employee{ID: "emp-1"} // no personal week-off

	var b attendance.SessionBuilder
	in := at(2024, time.January, 14, 9, 0) // a Sunday
	w := shift.WindowFor(in)
	rec := &attendance.DayRecord{Employee: emp.ID, Day: w.Day}
	b.ApplyIn(rec, attendance.Match{Shift: shift, Window: w}, in)
	_, err := b.ApplyOut(rec, at(2024, time.January, 14, 17, 30))
	require.NoError(t, err)

	mc.Compute(rec, &shift, emp)
	assert.Equal(t, attendance.StatusWorkedWeekOff, rec.Status)

	// A personal week-off overrides the deployment default entirely
	monday := time.Monday
	empWithOff := attendance.Employee{ID: "emp-2", FirstWeeklyOff: &monday}
	rec2 := &attendance.DayRecord{Employee: empWithOff.ID, Day: w.Day}
	b.ApplyIn(rec2, attendance.Match{Shift: shift, Window: w}, in)
	_, err = b.ApplyOut(rec2, at(2024, time.January, 14, 17, 30))
	require.NoError(t, err)

	mc.Compute(rec2, &shift, empWithOff)
	assert.Equal(t, attendance.StatusPresent, rec2.Status, "Sunday is a working day for them")
}

func TestCompute_Replayable(t *testing.T) {
	// Compute is a pure function of the stored punches: running it again
	// reproduces the record exactly.
	shift := dayShift()
	rec := computed(t, shift, attendance.Employee{ID: "emp-1"},
		at(2024, time.January, 10, 9, 25), at(2024, time.January, 10, 16, 0))

	before := *rec
	var mc attendance.MetricCalculator
	mc.Compute(rec, &shift, attendance.Employee{ID: "emp-1"})
	assert.Equal(t, before, *rec)
}
