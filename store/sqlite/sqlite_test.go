package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitali/attendance-engine/attendance"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func dur(d time.Duration) *time.Duration { return &d }

func TestEventLog_FetchAfter(t *testing.T) {
	// GIVEN a log with three punches
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendEvents(ctx,
		attendance.RawEvent{ID: 1, EmployeeID: "E1", Timestamp: base, Direction: attendance.DirectionIn, Device: "gate-1"},
		attendance.RawEvent{ID: 2, EmployeeID: "E1", Timestamp: base.Add(8 * time.Hour), Direction: attendance.DirectionOut},
		attendance.RawEvent{ID: 3, EmployeeID: "E2", Timestamp: base.Add(time.Minute), Direction: attendance.DirectionIn},
	))

	// WHEN fetching after id 1
	events, err := st.FetchEventsAfter(ctx, 1, 10)

	// THEN only the later events come back, in id order
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].ID)
	assert.Equal(t, int64(3), events[1].ID)
	assert.Equal(t, attendance.DirectionOut, events[0].Direction)
	assert.True(t, events[0].Timestamp.Equal(base.Add(8*time.Hour)))
}

func TestEventLog_LastIDBefore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendEvents(ctx,
		attendance.RawEvent{ID: 5, EmployeeID: "E1", Timestamp: base, Direction: attendance.DirectionIn},
		attendance.RawEvent{ID: 9, EmployeeID: "E1", Timestamp: base.AddDate(0, 0, 2), Direction: attendance.DirectionIn},
	))

	id, err := st.LastIDBefore(ctx, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	// No events at all before the epoch start
	id, err = st.LastIDBefore(ctx, base.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestEmployees_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sunday := time.Sunday
	emp := attendance.Employee{
		ID:             "emp-1",
		ExternalID:     "1042",
		Name:           "Asha Rao",
		ShiftName:      "general",
		FirstWeeklyOff: &sunday,
	}
	require.NoError(t, st.SaveEmployee(ctx, emp))

	got, err := st.ByExternalID(ctx, "1042")
	require.NoError(t, err)
	assert.Equal(t, emp, got)

	_, err = st.ByExternalID(ctx, "9999")
	assert.True(t, errors.Is(err, attendance.ErrNotFound))
}

func TestShifts_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	start, _ := attendance.ParseTimeOfDay("09:00")
	end, _ := attendance.ParseTimeOfDay("17:30")
	def := attendance.ShiftDefinition{
		Name:                 "general",
		StartTime:            start,
		EndTime:              end,
		ToleranceBeforeStart: 2 * time.Hour,
		ToleranceAfterStart:  4 * time.Hour,
		GraceAfterStart:      10 * time.Minute,
		GraceBeforeEnd:       10 * time.Minute,
		AbsentThreshold:      dur(4 * time.Hour),
		HalfDayThreshold:     dur(6 * time.Hour),
		FullDayThreshold:     dur(8 * time.Hour),
		OvertimeAfterEnd:     30 * time.Minute,
		LunchDuration:        30 * time.Minute,
		IncludeLunchInFullDay: true,
	}
	require.NoError(t, st.SaveShift(ctx, def))

	got, err := st.ShiftByName(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	// Nullable thresholds survive as nil, not zero
	def2 := def
	def2.Name = "loose"
	def2.AbsentThreshold = nil
	def2.HalfDayThreshold = nil
	require.NoError(t, st.SaveShift(ctx, def2))

	got2, err := st.ShiftByName(ctx, "loose")
	require.NoError(t, err)
	assert.Nil(t, got2.AbsentThreshold)
	assert.Nil(t, got2.HalfDayThreshold)
	require.NotNil(t, got2.FullDayThreshold)
	assert.Equal(t, 8*time.Hour, *got2.FullDayThreshold)

	all, err := st.AllShifts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAttendance_UpsertAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	day := attendance.NewDay(2026, time.January, 10)
	in, _ := attendance.ParseTimeOfDay("09:05")
	out, _ := attendance.ParseTimeOfDay("17:40")

	rec := attendance.DayRecord{
		Employee:  "emp-1",
		Day:       day,
		ShiftName: "general",
		FirstIn:   in.Ptr(),
		LastOut:   out.Ptr(),
		TotalTime: 8*time.Hour + 35*time.Minute,
		Overtime:  dur(10 * time.Minute),
		Status:    attendance.StatusPresent,
	}
	require.NoError(t, st.UpsertDay(ctx, rec))

	got, err := st.GetDay(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Upsert on the same key replaces, never duplicates
	rec.Status = attendance.StatusHalfDay
	require.NoError(t, st.UpsertDay(ctx, rec))

	days, err := st.ListDays(ctx, "emp-1", day, day)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, attendance.StatusHalfDay, days[0].Status)

	_, err = st.GetDay(ctx, "emp-1", day.AddDays(1))
	assert.True(t, errors.Is(err, attendance.ErrNotFound))
}

func TestMandays_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	day := attendance.NewDay(2026, time.January, 10)
	in1, _ := attendance.ParseTimeOfDay("09:00")
	out1, _ := attendance.ParseTimeOfDay("13:00")
	in2, _ := attendance.ParseTimeOfDay("14:00")

	rec := attendance.MandaysRecord{Employee: "emp-1", Day: day}
	rec.Slots[0] = attendance.DutySlot{In: in1.Ptr(), Out: out1.Ptr(), Duration: 4 * time.Hour}
	rec.Slots[1] = attendance.DutySlot{In: in2.Ptr()}
	rec.TotalHours = 4 * time.Hour

	require.NoError(t, st.UpsertMandays(ctx, rec))

	got, err := st.GetMandays(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCursor_DefaultsToZero(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	require.NoError(t, st.SetCursor(ctx, 42))
	id, err = st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestWithBatch_CommitsTogether(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	day := attendance.NewDay(2026, time.January, 10)
	rec := attendance.DayRecord{Employee: "emp-1", Day: day, Status: attendance.StatusPresent}

	err := st.WithBatch(ctx, func(b attendance.Batch) error {
		if err := b.UpsertDay(ctx, rec); err != nil {
			return err
		}
		return b.AdvanceCursor(ctx, 7)
	})
	require.NoError(t, err)

	got, err := st.GetDay(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, got.Status)

	id, err := st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestWithBatch_RollsBackOnError(t *testing.T) {
	// GIVEN a batch that writes a record and advances the cursor
	st := newTestStore(t)
	ctx := context.Background()

	day := attendance.NewDay(2026, time.January, 10)
	boom := errors.New("boom")

	// WHEN the batch function fails after writing
	err := st.WithBatch(ctx, func(b attendance.Batch) error {
		rec := attendance.DayRecord{Employee: "emp-1", Day: day, Status: attendance.StatusPresent}
		if err := b.UpsertDay(ctx, rec); err != nil {
			return err
		}
		if err := b.AdvanceCursor(ctx, 99); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN neither the record nor the cursor advance survived
	_, err = st.GetDay(ctx, "emp-1", day)
	assert.True(t, errors.Is(err, attendance.ErrNotFound))

	id, err := st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestRuns_SaveAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)
	run := attendance.Run{
		ID:        "run-1",
		StartedAt: started,
		Status:    attendance.RunRunning,
	}
	require.NoError(t, st.SaveRun(ctx, run))

	// Finish the run; SaveRun upserts on id
	done := started.Add(3 * time.Second)
	run.CompletedAt = &done
	run.Processed = 12
	run.Skipped = 1
	run.Status = attendance.RunCompleted
	require.NoError(t, st.SaveRun(ctx, run))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])
}
