package attendance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitali/attendance-engine/attendance"
)

func matchOn(shift attendance.ShiftDefinition, day attendance.Day) attendance.Match {
	return attendance.Match{Shift: shift, Window: shift.WindowOn(day)}
}

func TestApplyIn_FirstInWins(t *testing.T) {
	var b attendance.SessionBuilder
	day := attendance.NewDay(2024, time.January, 10)
	rec := &attendance.DayRecord{Employee: "emp-1", Day: day}
	m := matchOn(dayShift(), day)

	changed := b.ApplyIn(rec, m, at(2024, time.January, 10, 9, 5))
	require.True(t, changed)
	assert.Equal(t, attendance.ClockTime(9, 5), *rec.FirstIn)
	assert.Equal(t, "general", rec.ShiftName)

	// A later duplicate IN never overwrites the first
	changed = b.ApplyIn(rec, m, at(2024, time.January, 10, 9, 45))
	assert.False(t, changed)
	assert.Equal(t, attendance.ClockTime(9, 5), *rec.FirstIn)
}

func TestApplyOut_LastOutWins(t *testing.T) {
	var b attendance.SessionBuilder
	day := attendance.NewDay(2024, time.January, 10)
	rec := &attendance.DayRecord{Employee: "emp-1", Day: day}
	b.ApplyIn(rec, matchOn(dayShift(), day), at(2024, time.January, 10, 9, 0))

	changed, err := b.ApplyOut(rec, at(2024, time.January, 10, 17, 0))
	require.NoError(t, err)
	require.True(t, changed)

	// A later OUT replaces the stored one
	changed, err = b.ApplyOut(rec, at(2024, time.January, 10, 17, 45))
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, attendance.ClockTime(17, 45), *rec.LastOut)

	// An earlier OUT does not
	changed, err = b.ApplyOut(rec, at(2024, time.January, 10, 17, 10))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, attendance.ClockTime(17, 45), *rec.LastOut)
}

func TestApplyOut_RejectsOutBeforeIn(t *testing.T) {
	// GIVEN a session opened at 09:00
	var b attendance.SessionBuilder
	day := attendance.NewDay(2024, time.January, 10)
	rec := &attendance.DayRecord{Employee: "emp-1", Day: day}
	b.ApplyIn(rec, matchOn(dayShift(), day), at(2024, time.January, 10, 9, 0))

	// WHEN an OUT arrives stamped 08:59 the same day
	changed, err := b.ApplyOut(rec, at(2024, time.January, 10, 8, 59))

	// THEN it is rejected and the session stays open
	require.True(t, errors.Is(err, attendance.ErrInvalidPairing))
	assert.False(t, changed)
	assert.True(t, rec.Open())

	// Equal-to-IN is rejected too; the OUT must be strictly after
	_, err = b.ApplyOut(rec, at(2024, time.January, 10, 9, 0))
	assert.True(t, errors.Is(err, attendance.ErrInvalidPairing))
}

func TestApplyIn_DropsSkewedOrphanOut(t *testing.T) {
	// GIVEN a record holding only an orphan OUT stamped 08:59
	var b attendance.SessionBuilder
	day := attendance.NewDay(2024, time.January, 10)
	out := attendance.ClockTime(8, 59)
	rec := &attendance.DayRecord{Employee: "emp-1", Day: day, LastOut: &out}

	// WHEN an IN at 09:00 arrives on a day shift
	changed := b.ApplyIn(rec, matchOn(dayShift(), day), at(2024, time.January, 10, 9, 0))
	require.True(t, changed)

	// THEN the stale OUT is dropped instead of pairing backwards into a
	// near-24-hour overnight session
	assert.Equal(t, attendance.ClockTime(9, 0), *rec.FirstIn)
	assert.Nil(t, rec.LastOut)
	assert.True(t, rec.Open())
}

func TestApplyIn_KeepsNightShiftMorningOut(t *testing.T) {
	// GIVEN a night-shift morning OUT attributed to its start day before
	// the evening IN was reconciled
	var b attendance.SessionBuilder
	day := attendance.NewDay(2024, time.January, 10)
	out := attendance.ClockTime(6, 5)
	rec := &attendance.DayRecord{Employee: "emp-1", Day: day, LastOut: &out}

	// WHEN the 22:00 IN arrives
	changed := b.ApplyIn(rec, matchOn(nightShift(), day), at(2024, time.January, 10, 22, 0))
	require.True(t, changed)

	// THEN the OUT survives: on a night shift it closes the session on
	// the next calendar date
	assert.Equal(t, attendance.ClockTime(6, 5), *rec.LastOut)
	assert.False(t, rec.Open())
}

func TestDayRecord_OutAtRollsOverMidnight(t *testing.T) {
	day := attendance.NewDay(2024, time.January, 10)
	in := attendance.ClockTime(22, 15)
	out := attendance.ClockTime(6, 5)
	rec := &attendance.DayRecord{Employee: "emp-1", Day: day, FirstIn: &in, LastOut: &out}

	assert.Equal(t, at(2024, time.January, 10, 22, 15), rec.InAt())
	assert.Equal(t, at(2024, time.January, 11, 6, 5), rec.OutAt())
	assert.Equal(t, 7*time.Hour+50*time.Minute, rec.OutAt().Sub(rec.InAt()))
}
