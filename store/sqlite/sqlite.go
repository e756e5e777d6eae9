/*
Package sqlite provides the SQLite-backed implementation of the
engine's storage interfaces.

PURPOSE:
  One database holds the replicated device log, the employee
  directory, the shift catalog, the reconciled attendance rows and the
  cursor. In production deployments the raw log often lives in
  Postgres instead (see store/postgres); everything else stays here.

INTERFACES IMPLEMENTED:
  attendance.EventStore:        Device log reads (plus ingestion writes)
  attendance.EmployeeDirectory: Employee lookups
  attendance.ShiftStore:        Shift catalog persistence
  attendance.BatchStore:        Attendance rows + cursor, atomic batches
  attendance.RunStore:          Reconciliation run audit records

BATCH ATOMICITY:
  WithBatch wraps one SQL transaction around every record upsert and
  the cursor advance. A failed batch rolls back completely: the cursor
  never moves past events whose derived writes did not commit.

KEY TABLES:
  logs:                  Raw punches (id, employee, timestamp, direction)
  employees:             Directory with shift assignment and week-offs
  shifts:                Shift definitions (tolerances, grace, thresholds)
  attendance:            Single-session rows, unique (employee, logdate)
  mandays_attendance:    Multi-session rows, slots as JSON, same key
  reconciliation_cursor: Single row low-water-mark
  reconciliation_runs:   Run audit trail

WAL MODE:
  Opened with WAL so readers don't block the single reconciler writer.

USAGE:
  st, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  engine := attendance.NewReconciler(st, st, st,
      attendance.NewCachedCatalog(st), attendance.ModeSingle)

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
  - store/postgres: pgx-backed EventStore for replicated device logs
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/digitali/attendance-engine/attendance"
)

const timestampLayout = "2006-01-02 15:04:05"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Raw device log (append-only; replicated from the controllers)
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY,
		employee_id TEXT NOT NULL,
		log_datetime TEXT NOT NULL,
		direction TEXT NOT NULL,
		device TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_datetime ON logs(log_datetime);

	-- Employee directory
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		shift_name TEXT NOT NULL DEFAULT '',
		first_weekly_off INTEGER,
		second_weekly_off INTEGER
	);

	-- Shift catalog
	CREATE TABLE IF NOT EXISTS shifts (
		name TEXT PRIMARY KEY,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		tolerance_before_start INTEGER NOT NULL DEFAULT 0,
		tolerance_after_start INTEGER NOT NULL DEFAULT 0,
		grace_after_start INTEGER NOT NULL DEFAULT 0,
		grace_before_end INTEGER NOT NULL DEFAULT 0,
		absent_threshold INTEGER,
		half_day_threshold INTEGER,
		full_day_threshold INTEGER,
		overtime_before_start INTEGER NOT NULL DEFAULT 0,
		overtime_after_end INTEGER NOT NULL DEFAULT 0,
		lunch_duration INTEGER NOT NULL DEFAULT 0,
		include_lunch_in_half_day INTEGER NOT NULL DEFAULT 0,
		include_lunch_in_full_day INTEGER NOT NULL DEFAULT 0
	);

	-- Single-session attendance, one row per (employee, business day)
	CREATE TABLE IF NOT EXISTS attendance (
		employee_id TEXT NOT NULL,
		logdate TEXT NOT NULL,
		shift_name TEXT NOT NULL DEFAULT '',
		first_in TEXT,
		last_out TEXT,
		total_time INTEGER NOT NULL DEFAULT 0,
		late_entry INTEGER,
		early_exit INTEGER,
		overtime INTEGER,
		status TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (employee_id, logdate)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_logdate ON attendance(logdate);

	-- Multi-session attendance; slots serialized as JSON
	CREATE TABLE IF NOT EXISTS mandays_attendance (
		employee_id TEXT NOT NULL,
		logdate TEXT NOT NULL,
		slots_json TEXT NOT NULL,
		total_hours INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, logdate)
	);

	-- Low-water-mark of the last fully reconciled event
	CREATE TABLE IF NOT EXISTS reconciliation_cursor (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_event_id INTEGER NOT NULL DEFAULT 0
	);

	-- Run audit trail
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) FetchEventsAfter(ctx context.Context, after int64, limit int) ([]attendance.RawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, log_datetime, direction, COALESCE(device, '')
		FROM logs WHERE id > ? ORDER BY id ASC LIMIT ?`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []attendance.RawEvent
	for rows.Next() {
		var ev attendance.RawEvent
		var ts, dir string
		if err := rows.Scan(&ev.ID, &ev.EmployeeID, &ts, &dir, &ev.Device); err != nil {
			return nil, err
		}
		t, err := time.Parse(timestampLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("log %d: %w", ev.ID, err)
		}
		ev.Timestamp = t
		ev.Direction = attendance.Direction(dir)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) LastIDBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(id) FROM logs WHERE log_datetime < ?`,
		t.Format(timestampLayout)).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// AppendEvents writes raw punches into the log. Used by the ingestion
// path and by test fixtures; the reconciler itself never writes here.
func (s *Store) AppendEvents(ctx context.Context, events ...attendance.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO logs (id, employee_id, log_datetime, direction, device)
			VALUES (?, ?, ?, ?, ?)`,
			ev.ID, ev.EmployeeID, ev.Timestamp.Format(timestampLayout), string(ev.Direction), ev.Device)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

func (s *Store) ByExternalID(ctx context.Context, externalID string) (attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, shift_name, first_weekly_off, second_weekly_off
		FROM employees WHERE external_id = ?`, externalID)
	return scanEmployee(row)
}

func (s *Store) All(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, name, shift_name, first_weekly_off, second_weekly_off
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// SaveEmployee inserts or replaces a directory entry.
func (s *Store) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, external_id, name, shift_name, first_weekly_off, second_weekly_off)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			name = excluded.name,
			shift_name = excluded.shift_name,
			first_weekly_off = excluded.first_weekly_off,
			second_weekly_off = excluded.second_weekly_off`,
		string(emp.ID), emp.ExternalID, emp.Name, emp.ShiftName,
		weekdayValue(emp.FirstWeeklyOff), weekdayValue(emp.SecondWeeklyOff))
	return err
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (attendance.Employee, error) {
	var emp attendance.Employee
	var id string
	var first, second sql.NullInt64
	err := row.Scan(&id, &emp.ExternalID, &emp.Name, &emp.ShiftName, &first, &second)
	if err == sql.ErrNoRows {
		return attendance.Employee{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.Employee{}, err
	}
	emp.ID = attendance.EmployeeID(id)
	emp.FirstWeeklyOff = weekdayPtr(first)
	emp.SecondWeeklyOff = weekdayPtr(second)
	return emp, nil
}

func weekdayValue(w *time.Weekday) any {
	if w == nil {
		return nil
	}
	return int64(*w)
}

func weekdayPtr(v sql.NullInt64) *time.Weekday {
	if !v.Valid {
		return nil
	}
	w := time.Weekday(v.Int64)
	return &w
}

// =============================================================================
// SHIFT STORE
// =============================================================================

func (s *Store) AllShifts(ctx context.Context) ([]attendance.ShiftDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, start_time, end_time,
		       tolerance_before_start, tolerance_after_start,
		       grace_after_start, grace_before_end,
		       absent_threshold, half_day_threshold, full_day_threshold,
		       overtime_before_start, overtime_after_end,
		       lunch_duration, include_lunch_in_half_day, include_lunch_in_full_day
		FROM shifts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.ShiftDefinition
	for rows.Next() {
		def, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

func (s *Store) ShiftByName(ctx context.Context, name string) (attendance.ShiftDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT name, start_time, end_time,
		       tolerance_before_start, tolerance_after_start,
		       grace_after_start, grace_before_end,
		       absent_threshold, half_day_threshold, full_day_threshold,
		       overtime_before_start, overtime_after_end,
		       lunch_duration, include_lunch_in_half_day, include_lunch_in_full_day
		FROM shifts WHERE name = ?`, name)
	return scanShift(row)
}

func (s *Store) SaveShift(ctx context.Context, def attendance.ShiftDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (name, start_time, end_time,
			tolerance_before_start, tolerance_after_start,
			grace_after_start, grace_before_end,
			absent_threshold, half_day_threshold, full_day_threshold,
			overtime_before_start, overtime_after_end,
			lunch_duration, include_lunch_in_half_day, include_lunch_in_full_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			tolerance_before_start = excluded.tolerance_before_start,
			tolerance_after_start = excluded.tolerance_after_start,
			grace_after_start = excluded.grace_after_start,
			grace_before_end = excluded.grace_before_end,
			absent_threshold = excluded.absent_threshold,
			half_day_threshold = excluded.half_day_threshold,
			full_day_threshold = excluded.full_day_threshold,
			overtime_before_start = excluded.overtime_before_start,
			overtime_after_end = excluded.overtime_after_end,
			lunch_duration = excluded.lunch_duration,
			include_lunch_in_half_day = excluded.include_lunch_in_half_day,
			include_lunch_in_full_day = excluded.include_lunch_in_full_day`,
		def.Name, def.StartTime.String(), def.EndTime.String(),
		int64(def.ToleranceBeforeStart/time.Second), int64(def.ToleranceAfterStart/time.Second),
		int64(def.GraceAfterStart/time.Second), int64(def.GraceBeforeEnd/time.Second),
		secondsValue(def.AbsentThreshold), secondsValue(def.HalfDayThreshold), secondsValue(def.FullDayThreshold),
		int64(def.OvertimeBeforeStart/time.Second), int64(def.OvertimeAfterEnd/time.Second),
		int64(def.LunchDuration/time.Second), boolValue(def.IncludeLunchInHalfDay), boolValue(def.IncludeLunchInFullDay))
	return err
}

func scanShift(row rowScanner) (attendance.ShiftDefinition, error) {
	var def attendance.ShiftDefinition
	var start, end string
	var tolBefore, tolAfter, graceIn, graceOut, otBefore, otAfter, lunch int64
	var absent, half, full sql.NullInt64
	var lunchHalf, lunchFull int64

	err := row.Scan(&def.Name, &start, &end,
		&tolBefore, &tolAfter, &graceIn, &graceOut,
		&absent, &half, &full,
		&otBefore, &otAfter,
		&lunch, &lunchHalf, &lunchFull)
	if err == sql.ErrNoRows {
		return attendance.ShiftDefinition{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.ShiftDefinition{}, err
	}

	def.StartTime, err = attendance.ParseTimeOfDay(start)
	if err != nil {
		return attendance.ShiftDefinition{}, err
	}
	def.EndTime, err = attendance.ParseTimeOfDay(end)
	if err != nil {
		return attendance.ShiftDefinition{}, err
	}
	def.ToleranceBeforeStart = time.Duration(tolBefore) * time.Second
	def.ToleranceAfterStart = time.Duration(tolAfter) * time.Second
	def.GraceAfterStart = time.Duration(graceIn) * time.Second
	def.GraceBeforeEnd = time.Duration(graceOut) * time.Second
	def.AbsentThreshold = secondsPtr(absent)
	def.HalfDayThreshold = secondsPtr(half)
	def.FullDayThreshold = secondsPtr(full)
	def.OvertimeBeforeStart = time.Duration(otBefore) * time.Second
	def.OvertimeAfterEnd = time.Duration(otAfter) * time.Second
	def.LunchDuration = time.Duration(lunch) * time.Second
	def.IncludeLunchInHalfDay = lunchHalf != 0
	def.IncludeLunchInFullDay = lunchFull != 0
	return def, nil
}

func secondsValue(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return int64(*d / time.Second)
}

func secondsPtr(v sql.NullInt64) *time.Duration {
	if !v.Valid {
		return nil
	}
	d := time.Duration(v.Int64) * time.Second
	return &d
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

func (s *Store) GetDay(ctx context.Context, emp attendance.EmployeeID, day attendance.Day) (attendance.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, logdate, shift_name, first_in, last_out,
		       total_time, late_entry, early_exit, overtime, status
		FROM attendance WHERE employee_id = ? AND logdate = ?`,
		string(emp), day.String())
	return scanDayRecord(row)
}

func (s *Store) ListDays(ctx context.Context, emp attendance.EmployeeID, from, to attendance.Day) ([]attendance.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, logdate, shift_name, first_in, last_out,
		       total_time, late_entry, early_exit, overtime, status
		FROM attendance
		WHERE employee_id = ? AND logdate >= ? AND logdate <= ?
		ORDER BY logdate`,
		string(emp), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.DayRecord
	for rows.Next() {
		rec, err := scanDayRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) UpsertDay(ctx context.Context, rec attendance.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertDay(ctx, s.db, rec)
}

func (s *Store) GetMandays(ctx context.Context, emp attendance.EmployeeID, day attendance.Day) (attendance.MandaysRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, logdate, slots_json, total_hours
		FROM mandays_attendance WHERE employee_id = ? AND logdate = ?`,
		string(emp), day.String())
	return scanMandaysRecord(row)
}

func (s *Store) UpsertMandays(ctx context.Context, rec attendance.MandaysRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertMandays(ctx, s.db, rec)
}

// execer abstracts *sql.DB and *sql.Tx so batch writes share the same
// statements as out-of-batch writes.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDay(ctx context.Context, db execer, rec attendance.DayRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance (employee_id, logdate, shift_name, first_in, last_out,
			total_time, late_entry, early_exit, overtime, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, logdate) DO UPDATE SET
			shift_name = excluded.shift_name,
			first_in = excluded.first_in,
			last_out = excluded.last_out,
			total_time = excluded.total_time,
			late_entry = excluded.late_entry,
			early_exit = excluded.early_exit,
			overtime = excluded.overtime,
			status = excluded.status`,
		string(rec.Employee), rec.Day.String(), rec.ShiftName,
		timeOfDayValue(rec.FirstIn), timeOfDayValue(rec.LastOut),
		int64(rec.TotalTime/time.Second),
		secondsValue(rec.LateEntry), secondsValue(rec.EarlyExit), secondsValue(rec.Overtime),
		string(rec.Status))
	return err
}

// slotJSON is the serialized form of one duty slot.
type slotJSON struct {
	In       string `json:"in,omitempty"`
	Out      string `json:"out,omitempty"`
	Duration int64  `json:"duration_seconds,omitempty"`
}

func upsertMandays(ctx context.Context, db execer, rec attendance.MandaysRecord) error {
	slots := make([]slotJSON, 0, attendance.MaxDutySlots)
	for i := range rec.Slots {
		slot := &rec.Slots[i]
		var j slotJSON
		if slot.In != nil {
			j.In = slot.In.String()
		}
		if slot.Out != nil {
			j.Out = slot.Out.String()
		}
		j.Duration = int64(slot.Duration / time.Second)
		slots = append(slots, j)
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO mandays_attendance (employee_id, logdate, slots_json, total_hours)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, logdate) DO UPDATE SET
			slots_json = excluded.slots_json,
			total_hours = excluded.total_hours`,
		string(rec.Employee), rec.Day.String(), string(data),
		int64(rec.TotalHours/time.Second))
	return err
}

func scanDayRecord(row rowScanner) (attendance.DayRecord, error) {
	var rec attendance.DayRecord
	var emp, date, status string
	var firstIn, lastOut sql.NullString
	var total int64
	var late, early, overtime sql.NullInt64

	err := row.Scan(&emp, &date, &rec.ShiftName, &firstIn, &lastOut,
		&total, &late, &early, &overtime, &status)
	if err == sql.ErrNoRows {
		return attendance.DayRecord{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.DayRecord{}, err
	}

	rec.Employee = attendance.EmployeeID(emp)
	rec.Day, err = attendance.ParseDay(date)
	if err != nil {
		return attendance.DayRecord{}, err
	}
	rec.FirstIn, err = timeOfDayPtr(firstIn)
	if err != nil {
		return attendance.DayRecord{}, err
	}
	rec.LastOut, err = timeOfDayPtr(lastOut)
	if err != nil {
		return attendance.DayRecord{}, err
	}
	rec.TotalTime = time.Duration(total) * time.Second
	rec.LateEntry = secondsPtr(late)
	rec.EarlyExit = secondsPtr(early)
	rec.Overtime = secondsPtr(overtime)
	rec.Status = attendance.Status(status)
	return rec, nil
}

func scanMandaysRecord(row rowScanner) (attendance.MandaysRecord, error) {
	var rec attendance.MandaysRecord
	var emp, date, slotsData string
	var total int64

	err := row.Scan(&emp, &date, &slotsData, &total)
	if err == sql.ErrNoRows {
		return attendance.MandaysRecord{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.MandaysRecord{}, err
	}

	rec.Employee = attendance.EmployeeID(emp)
	rec.Day, err = attendance.ParseDay(date)
	if err != nil {
		return attendance.MandaysRecord{}, err
	}

	var slots []slotJSON
	if err := json.Unmarshal([]byte(slotsData), &slots); err != nil {
		return attendance.MandaysRecord{}, err
	}
	for i, j := range slots {
		if i >= attendance.MaxDutySlots {
			break
		}
		if j.In != "" {
			t, err := attendance.ParseTimeOfDay(j.In)
			if err != nil {
				return attendance.MandaysRecord{}, err
			}
			rec.Slots[i].In = &t
		}
		if j.Out != "" {
			t, err := attendance.ParseTimeOfDay(j.Out)
			if err != nil {
				return attendance.MandaysRecord{}, err
			}
			rec.Slots[i].Out = &t
		}
		rec.Slots[i].Duration = time.Duration(j.Duration) * time.Second
	}
	rec.TotalHours = time.Duration(total) * time.Second
	return rec, nil
}

func timeOfDayValue(t *attendance.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func timeOfDayPtr(v sql.NullString) (*attendance.TimeOfDay, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := attendance.ParseTimeOfDay(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// CURSOR
// =============================================================================

func (s *Store) Current(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_event_id FROM reconciliation_cursor WHERE id = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) SetCursor(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setCursor(ctx, s.db, id)
}

func setCursor(ctx context.Context, db execer, id int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reconciliation_cursor (id, last_event_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_event_id = excluded.last_event_id`, id)
	return err
}

// =============================================================================
// ATOMIC BATCHES
// =============================================================================

// WithBatch runs fn inside one SQL transaction. Record upserts and the
// cursor advance commit together or not at all.
func (s *Store) WithBatch(ctx context.Context, fn func(attendance.Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&sqlBatch{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type sqlBatch struct {
	tx *sql.Tx
}

func (b *sqlBatch) UpsertDay(ctx context.Context, rec attendance.DayRecord) error {
	return upsertDay(ctx, b.tx, rec)
}

func (b *sqlBatch) UpsertMandays(ctx context.Context, rec attendance.MandaysRecord) error {
	return upsertMandays(ctx, b.tx, rec)
}

func (b *sqlBatch) AdvanceCursor(ctx context.Context, id int64) error {
	return setCursor(ctx, b.tx, id)
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run attendance.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completed any
	if run.CompletedAt != nil {
		completed = run.CompletedAt.Format(timestampLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, started_at, completed_at, processed, skipped, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			processed = excluded.processed,
			skipped = excluded.skipped,
			status = excluded.status,
			error = excluded.error`,
		run.ID, run.StartedAt.Format(timestampLayout), completed,
		run.Processed, run.Skipped, string(run.Status), run.Error)
	return err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]attendance.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, processed, skipped, status, error
		FROM reconciliation_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Run
	for rows.Next() {
		var run attendance.Run
		var started string
		var completed sql.NullString
		var status string
		if err := rows.Scan(&run.ID, &started, &completed, &run.Processed, &run.Skipped, &status, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt, err = time.Parse(timestampLayout, started)
		if err != nil {
			return nil, err
		}
		if completed.Valid {
			t, err := time.Parse(timestampLayout, completed.String)
			if err != nil {
				return nil, err
			}
			run.CompletedAt = &t
		}
		run.Status = attendance.RunStatus(status)
		out = append(out, run)
	}
	return out, rows.Err()
}
