package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitali/attendance-engine/attendance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func dur(d time.Duration) *time.Duration { return &d }

// dayShift is a plain 09:00-17:30 shift with wide acceptance windows.
func dayShift() attendance.ShiftDefinition {
	return attendance.ShiftDefinition{
		Name:                 "general",
		StartTime:            attendance.ClockTime(9, 0),
		EndTime:              attendance.ClockTime(17, 30),
		ToleranceBeforeStart: 2 * time.Hour,
		ToleranceAfterStart:  4 * time.Hour,
		GraceAfterStart:      10 * time.Minute,
		GraceBeforeEnd:       10 * time.Minute,
		AbsentThreshold:      dur(4 * time.Hour),
		HalfDayThreshold:     dur(6 * time.Hour),
		FullDayThreshold:     dur(8 * time.Hour),
		OvertimeAfterEnd:     30 * time.Minute,
		OvertimeBeforeStart:  30 * time.Minute,
	}
}

// nightShift crosses midnight: 22:00 to 06:00 the next date.
func nightShift() attendance.ShiftDefinition {
	return attendance.ShiftDefinition{
		Name:                 "night",
		StartTime:            attendance.ClockTime(22, 0),
		EndTime:              attendance.ClockTime(6, 0),
		ToleranceBeforeStart: time.Hour,
		ToleranceAfterStart:  2 * time.Hour,
		GraceAfterStart:      10 * time.Minute,
		GraceBeforeEnd:       10 * time.Minute,
		AbsentThreshold:      dur(4 * time.Hour),
		HalfDayThreshold:     dur(6 * time.Hour),
		FullDayThreshold:     dur(8 * time.Hour),
		OvertimeAfterEnd:     30 * time.Minute,
		OvertimeBeforeStart:  30 * time.Minute,
	}
}

// =============================================================================
// WINDOW ARITHMETIC
// =============================================================================

func TestWindowFor_DayShift(t *testing.T) {
	shift := dayShift()

	w := shift.WindowFor(at(2024, time.January, 10, 9, 5))

	assert.Equal(t, attendance.NewDay(2024, time.January, 10), w.Day)
	assert.Equal(t, at(2024, time.January, 10, 9, 0), w.Start)
	assert.Equal(t, at(2024, time.January, 10, 17, 30), w.End)
	assert.Equal(t, at(2024, time.January, 10, 7, 0), w.WindowOpen)
	assert.Equal(t, at(2024, time.January, 10, 13, 0), w.WindowClose)
	assert.Equal(t, at(2024, time.January, 10, 9, 10), w.StartWithGrace)
	assert.Equal(t, at(2024, time.January, 10, 17, 20), w.EndWithGrace)
}

func TestWindowFor_NightShiftTail(t *testing.T) {
	// A punch on the early-morning tail of a night shift belongs to the
	// PREVIOUS day's shift.
	shift := nightShift()
	require.True(t, shift.IsNightShift())

	w := shift.WindowFor(at(2024, time.January, 11, 5, 30))

	assert.Equal(t, attendance.NewDay(2024, time.January, 10), w.Day)
	assert.Equal(t, at(2024, time.January, 10, 22, 0), w.Start)
	assert.Equal(t, at(2024, time.January, 11, 6, 0), w.End)
}

func TestWindowFor_NightShiftEvening(t *testing.T) {
	// An evening punch at or after start time stays on its own date.
	shift := nightShift()

	w := shift.WindowFor(at(2024, time.January, 10, 22, 15))

	assert.Equal(t, attendance.NewDay(2024, time.January, 10), w.Day)
	assert.Equal(t, at(2024, time.January, 11, 6, 0), w.End)
}

func TestAcceptsIn_ToleranceBoundaries(t *testing.T) {
	shift := dayShift()
	w := shift.WindowOn(attendance.NewDay(2024, time.January, 10))

	assert.True(t, w.AcceptsIn(at(2024, time.January, 10, 7, 0)), "window open is inclusive")
	assert.True(t, w.AcceptsIn(at(2024, time.January, 10, 13, 0)), "window close is inclusive")
	assert.False(t, w.AcceptsIn(at(2024, time.January, 10, 6, 59)))
	assert.False(t, w.AcceptsIn(at(2024, time.January, 10, 13, 1)))
}

func TestAcceptsOut_SymmetricWindowAroundEnd(t *testing.T) {
	shift := dayShift()
	w := shift.WindowOn(attendance.NewDay(2024, time.January, 10))

	// 17:30 end, tolerance 2h before / 4h after
	assert.True(t, w.AcceptsOut(at(2024, time.January, 10, 15, 30), &shift))
	assert.True(t, w.AcceptsOut(at(2024, time.January, 10, 21, 30), &shift))
	assert.False(t, w.AcceptsOut(at(2024, time.January, 10, 15, 29), &shift))
	assert.False(t, w.AcceptsOut(at(2024, time.January, 10, 21, 31), &shift))
}

// =============================================================================
// CLOCK TYPES
// =============================================================================

func TestParseTimeOfDay(t *testing.T) {
	got, err := attendance.ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, attendance.ClockTime(9, 5), got)

	got, err = attendance.ParseTimeOfDay("22:15:30")
	require.NoError(t, err)
	assert.Equal(t, "22:15:30", got.String())

	_, err = attendance.ParseTimeOfDay("9 o'clock")
	assert.Error(t, err)
}

func TestDay_Arithmetic(t *testing.T) {
	d := attendance.NewDay(2024, time.January, 31)

	assert.Equal(t, attendance.NewDay(2024, time.February, 1), d.AddDays(1))
	assert.Equal(t, attendance.NewDay(2024, time.January, 1), d.StartOfMonth())
	assert.Equal(t, d, d.EndOfMonth())
	assert.Equal(t, attendance.NewDay(2024, time.February, 29), attendance.NewDay(2024, time.February, 10).EndOfMonth())

	parsed, err := attendance.ParseDay("2024-01-31")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(d))

	assert.Equal(t, at(2024, time.January, 31, 9, 30), d.At(attendance.ClockTime(9, 30)))
}
