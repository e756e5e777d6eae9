/*
reconciler.go - Incremental cursor-driven reconciliation

PURPOSE:
  Orchestrates one idempotent pass over the device log: fetch a
  cursor-bounded batch, resolve employees, match shifts, build duty
  sessions, recompute metrics, and persist everything together with
  the cursor advance in one atomic batch write.

STATE MACHINE (per run):
  Idle -> FetchingBatch -> Matching -> BuildingSessions ->
  ComputingMetrics -> Persisting -> AdvancingCursor -> Idle

FORWARD PROGRESS:
  An event the engine can never apply (unknown employee, no matching
  shift, invalid pairing) is skipped with a logged warning and the
  cursor still advances past it. Only a persistence failure stops the
  run: then the whole batch rolls back, the cursor does not move, and
  the next run retries the batch in full.

CONCURRENCY:
  A run that overlaps a still-running previous run is suppressed, not
  queued: session mutation is not safe under concurrent writers for
  the same employee/day. The guard here covers one process; deploys
  with multiple processes need an external lease.
*/
package attendance

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Mode selects how punches pair into sessions. Deployment-wide, not
// per employee.
type Mode string

const (
	// ModeSingle keeps one session per day: first IN, last OUT.
	ModeSingle Mode = "single"
	// ModeMandays keeps up to MaxDutySlots IN/OUT pairs per day.
	ModeMandays Mode = "mandays"
)

// DefaultBatchLimit bounds how many events one page of a run processes.
const DefaultBatchLimit = 500

// Reconciler owns one full reconciliation pipeline.
type Reconciler struct {
	Events    EventStore
	Store     BatchStore
	Directory EmployeeDirectory
	Catalog   ShiftCatalog

	Mode       Mode
	BatchLimit int
	Metrics    MetricCalculator

	matcher  ShiftMatcher
	sessions SessionBuilder
	mandays  MandaysBuilder

	mu sync.Mutex // at-most-one-concurrent-run guard
}

// NewReconciler wires a reconciler with defaults.
func NewReconciler(events EventStore, store BatchStore, dir EmployeeDirectory, catalog ShiftCatalog, mode Mode) *Reconciler {
	return &Reconciler{
		Events:     events,
		Store:      store,
		Directory:  dir,
		Catalog:    catalog,
		Mode:       mode,
		BatchLimit: DefaultBatchLimit,
		matcher:    ShiftMatcher{Catalog: catalog},
	}
}

// =============================================================================
// RECONCILE ONCE - One full pass from the cursor to the newest event
// =============================================================================

// ReconcileOnce processes every event past the current cursor, in pages
// of BatchLimit. Each page commits atomically with its cursor advance.
// Invoking it while a previous run is still executing returns
// ErrRunInProgress without touching any state.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (processed, skipped int, err error) {
	if !r.mu.TryLock() {
		return 0, 0, ErrRunInProgress
	}
	defer r.mu.Unlock()

	limit := r.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	cursor, err := r.Store.Current(ctx)
	if err != nil {
		return 0, 0, err
	}

	for {
		events, err := r.Events.FetchEventsAfter(ctx, cursor, limit)
		if err != nil {
			return processed, skipped, err
		}
		if len(events) == 0 {
			return processed, skipped, nil
		}

		p, s, maxID, err := r.processPage(ctx, events)
		processed += p
		skipped += s
		if err != nil {
			return processed, skipped, err
		}

		cursor = maxID
		if len(events) < limit {
			return processed, skipped, nil
		}
	}
}

// processPage reconciles one page into a working set and commits it
// together with the cursor advance.
func (r *Reconciler) processPage(ctx context.Context, events []RawEvent) (processed, skipped int, maxID int64, err error) {
	for _, ev := range events {
		if ev.ID > maxID {
			maxID = ev.ID
		}
	}

	// Within a batch, events apply in (employee, timestamp) order.
	// Across employees no ordering is guaranteed or needed.
	sorted := make([]RawEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EmployeeID != sorted[j].EmployeeID {
			return sorted[i].EmployeeID < sorted[j].EmployeeID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	ws := newWorkingSet(r.Store)

	for _, ev := range sorted {
		if err := r.applyEvent(ctx, ws, ev); err != nil {
			if IsSkippable(err) {
				log.Printf("[Reconciler] skipping event %d: %v", ev.ID, err)
				skipped++
				continue
			}
			return processed, skipped, maxID, err
		}
		processed++
	}

	err = r.Store.WithBatch(ctx, func(b Batch) error {
		for _, rec := range ws.dirtyDays() {
			if err := b.UpsertDay(ctx, rec); err != nil {
				return err
			}
		}
		for _, rec := range ws.dirtyMandays() {
			if err := b.UpsertMandays(ctx, rec); err != nil {
				return err
			}
		}
		return b.AdvanceCursor(ctx, maxID)
	})
	return processed, skipped, maxID, err
}

// applyEvent routes one event through matching, session building and
// metric recomputation. Returned skippable errors leave state untouched.
func (r *Reconciler) applyEvent(ctx context.Context, ws *workingSet, ev RawEvent) error {
	emp, err := r.Directory.ByExternalID(ctx, ev.EmployeeID)
	if err != nil {
		if IsNotFound(err) {
			return &UnknownEmployeeError{EventID: ev.ID, ExternalID: ev.EmployeeID}
		}
		return err
	}

	if r.Mode == ModeMandays {
		return r.applyMandays(ctx, ws, emp, ev)
	}
	return r.applySingle(ctx, ws, emp, ev)
}

// =============================================================================
// SINGLE-SESSION MODE
// =============================================================================

func (r *Reconciler) applySingle(ctx context.Context, ws *workingSet, emp Employee, ev RawEvent) error {
	switch ev.Direction {
	case DirectionIn:
		m, err := r.matcher.MatchIn(ctx, emp, ev)
		if err != nil {
			return err
		}
		rec, err := ws.day(ctx, emp.ID, m.Day())
		if err != nil {
			return err
		}
		if r.sessions.ApplyIn(rec, m, ev.Timestamp) {
			r.Metrics.Compute(rec, &m.Shift, emp)
			ws.markDayDirty(emp.ID, rec.Day)
		}
		return nil

	case DirectionOut:
		rec, err := r.locateOutTarget(ctx, ws, emp, ev)
		if err != nil {
			return err
		}
		changed, err := r.sessions.ApplyOut(rec, ev.Timestamp)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		ws.markDayDirty(emp.ID, rec.Day)
		if rec.ShiftName == "" {
			// OUT-only row that matched no shift: no thresholds to apply.
			rec.Status = StatusMissedPunch
			return nil
		}
		shift, err := r.Catalog.ByName(ctx, rec.ShiftName)
		if err != nil {
			return err
		}
		r.Metrics.Compute(rec, &shift, emp)
		return nil
	}
	return nil
}

// locateOutTarget finds the record an OUT punch closes: the punch
// date's own record when it has an IN, else the previous day's still
// open record (night-shift carry-over), else a fresh OUT-only record
// attributed via the OUT acceptance window when one matches.
func (r *Reconciler) locateOutTarget(ctx context.Context, ws *workingSet, emp Employee, ev RawEvent) (*DayRecord, error) {
	day := DayOf(ev.Timestamp)

	rec, err := ws.day(ctx, emp.ID, day)
	if err != nil {
		return nil, err
	}
	if rec.HasIn() {
		return rec, nil
	}

	prev, err := ws.day(ctx, emp.ID, day.AddDays(-1))
	if err != nil {
		return nil, err
	}
	if prev.Open() {
		return prev, nil
	}
	if prev.HasIn() && prev.HasOut() && prev.OutAt().Equal(ev.Timestamp) {
		// Replayed close of the previous day's session; ApplyOut will
		// see the equal OUT and leave the record untouched.
		return prev, nil
	}

	// No IN anywhere: the OUT still gets a record, flagged MP. A shift
	// is attributed when the punch sits in some OUT acceptance window.
	if m, err := r.matcher.MatchOut(ctx, emp, ev); err == nil {
		target, err := ws.day(ctx, emp.ID, m.Day())
		if err != nil {
			return nil, err
		}
		if target.ShiftName == "" {
			target.ShiftName = m.Shift.Name
		}
		return target, nil
	}
	return rec, nil
}

// =============================================================================
// MANDAYS MODE
// =============================================================================

func (r *Reconciler) applyMandays(ctx context.Context, ws *workingSet, emp Employee, ev RawEvent) error {
	day := DayOf(ev.Timestamp)

	switch ev.Direction {
	case DirectionIn:
		rec, err := ws.mandays(ctx, emp.ID, day)
		if err != nil {
			return err
		}
		if r.mandays.ApplyIn(rec, ev.Timestamp) {
			ws.markMandaysDirty(emp.ID, day)
		}
		return nil

	case DirectionOut:
		rec, err := ws.mandays(ctx, emp.ID, day)
		if err != nil {
			return err
		}
		if rec.OpenSlot() < 0 {
			// Overnight span: close the previous day's open slot instead.
			prev, err := ws.mandays(ctx, emp.ID, day.AddDays(-1))
			if err != nil {
				return err
			}
			if prev.OpenSlot() >= 0 {
				changed, err := r.mandays.ApplyOut(prev, ev.Timestamp)
				if err != nil {
					return err
				}
				if changed {
					ws.markMandaysDirty(emp.ID, prev.Day)
				}
				return nil
			}
			if prev.HasOutAt(TimeOfDayOf(ev.Timestamp)) {
				// Replayed overnight close; the previous day owns it.
				return nil
			}
		}
		changed, err := r.mandays.ApplyOut(rec, ev.Timestamp)
		if err != nil {
			return err
		}
		if changed {
			ws.markMandaysDirty(emp.ID, day)
		}
		return nil
	}
	return nil
}

// =============================================================================
// ADMINISTRATIVE OPERATIONS
// =============================================================================

// ResetCursor rewinds the cursor to the last event strictly before t,
// or 0 when none exists. Used when historical data must be rebuilt;
// existing records are recomputed in place on replay.
func (r *Reconciler) ResetCursor(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.Events.LastIDBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if err := r.Store.SetCursor(ctx, id); err != nil {
		return 0, err
	}
	log.Printf("[Reconciler] cursor reset to %d (before %s)", id, before.Format("2006-01-02"))
	return id, nil
}

// GetAttendance returns the reconciled single-session row for a day.
func (r *Reconciler) GetAttendance(ctx context.Context, emp EmployeeID, day Day) (DayRecord, error) {
	return r.Store.GetDay(ctx, emp, day)
}

// GetMandays returns the reconciled multi-session row for a day.
func (r *Reconciler) GetMandays(ctx context.Context, emp EmployeeID, day Day) (MandaysRecord, error) {
	return r.Store.GetMandays(ctx, emp, day)
}

// MarkAbsentees creates status-A rows for every employee without an
// attendance row on each of the n days ending at end. Existing rows are
// never touched.
func (r *Reconciler) MarkAbsentees(ctx context.Context, end Day, n int) (created int, err error) {
	employees, err := r.Directory.All(ctx)
	if err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		day := end.AddDays(-i)
		for _, emp := range employees {
			_, err := r.Store.GetDay(ctx, emp.ID, day)
			if err == nil {
				continue
			}
			if !IsNotFound(err) {
				return created, err
			}
			rec := DayRecord{Employee: emp.ID, Day: day, Status: StatusAbsent}
			if err := r.Store.UpsertDay(ctx, rec); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

// =============================================================================
// WORKING SET - Per-page read-through cache of mutated records
// =============================================================================

type dayKey struct {
	emp EmployeeID
	day Day
}

// workingSet caches the records a page touches so repeated events for
// the same employee/day mutate one in-memory copy, then flushes only
// the dirty ones inside the batch write.
type workingSet struct {
	store   AttendanceStore
	days    map[dayKey]*DayRecord
	manrecs map[dayKey]*MandaysRecord
	dirtyD  map[dayKey]bool
	dirtyM  map[dayKey]bool
}

func newWorkingSet(store AttendanceStore) *workingSet {
	return &workingSet{
		store:   store,
		days:    make(map[dayKey]*DayRecord),
		manrecs: make(map[dayKey]*MandaysRecord),
		dirtyD:  make(map[dayKey]bool),
		dirtyM:  make(map[dayKey]bool),
	}
}

func (ws *workingSet) day(ctx context.Context, emp EmployeeID, day Day) (*DayRecord, error) {
	k := dayKey{emp, day}
	if rec, ok := ws.days[k]; ok {
		return rec, nil
	}
	rec, err := ws.store.GetDay(ctx, emp, day)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		rec = DayRecord{Employee: emp, Day: day}
	}
	ws.days[k] = &rec
	return &rec, nil
}

func (ws *workingSet) mandays(ctx context.Context, emp EmployeeID, day Day) (*MandaysRecord, error) {
	k := dayKey{emp, day}
	if rec, ok := ws.manrecs[k]; ok {
		return rec, nil
	}
	rec, err := ws.store.GetMandays(ctx, emp, day)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		rec = MandaysRecord{Employee: emp, Day: day}
	}
	ws.manrecs[k] = &rec
	return &rec, nil
}

func (ws *workingSet) markDayDirty(emp EmployeeID, day Day)     { ws.dirtyD[dayKey{emp, day}] = true }
func (ws *workingSet) markMandaysDirty(emp EmployeeID, day Day) { ws.dirtyM[dayKey{emp, day}] = true }

func (ws *workingSet) dirtyDays() []DayRecord {
	keys := make([]dayKey, 0, len(ws.dirtyD))
	for k := range ws.dirtyD {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].emp != keys[j].emp {
			return keys[i].emp < keys[j].emp
		}
		return keys[i].day.Before(keys[j].day)
	})
	out := make([]DayRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, *ws.days[k])
	}
	return out
}

func (ws *workingSet) dirtyMandays() []MandaysRecord {
	keys := make([]dayKey, 0, len(ws.dirtyM))
	for k := range ws.dirtyM {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].emp != keys[j].emp {
			return keys[i].emp < keys[j].emp
		}
		return keys[i].day.Before(keys[j].day)
	})
	out := make([]MandaysRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, *ws.manrecs[k])
	}
	return out
}
