// Package store provides in-memory implementations of the engine's
// collaborator interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/digitali/attendance-engine/attendance"
)

// =============================================================================
// MEMORY EVENT STORE - Append-only device log
// =============================================================================

type MemoryEvents struct {
	mu     sync.RWMutex
	events []attendance.RawEvent // ordered by id
}

func NewMemoryEvents() *MemoryEvents {
	return &MemoryEvents{}
}

// Append adds events, keeping id order. Test fixtures append in order.
func (m *MemoryEvents) Append(events ...attendance.RawEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	sort.Slice(m.events, func(i, j int) bool { return m.events[i].ID < m.events[j].ID })
}

func (m *MemoryEvents) FetchEventsAfter(_ context.Context, after int64, limit int) ([]attendance.RawEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.events), func(i int) bool { return m.events[i].ID > after })
	var out []attendance.RawEvent
	for ; i < len(m.events) && len(out) < limit; i++ {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *MemoryEvents) LastIDBefore(_ context.Context, t time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last int64
	for _, ev := range m.events {
		if ev.Timestamp.Before(t) && ev.ID > last {
			last = ev.ID
		}
	}
	return last, nil
}

// =============================================================================
// MEMORY DIRECTORY
// =============================================================================

type MemoryDirectory struct {
	mu        sync.RWMutex
	employees map[string]attendance.Employee // by external id
}

func NewMemoryDirectory(employees ...attendance.Employee) *MemoryDirectory {
	d := &MemoryDirectory{employees: make(map[string]attendance.Employee)}
	for _, e := range employees {
		d.employees[e.ExternalID] = e
	}
	return d
}

func (d *MemoryDirectory) Put(e attendance.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ExternalID] = e
}

func (d *MemoryDirectory) ByExternalID(_ context.Context, externalID string) (attendance.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[externalID]
	if !ok {
		return attendance.Employee{}, attendance.ErrNotFound
	}
	return e, nil
}

func (d *MemoryDirectory) All(_ context.Context) ([]attendance.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]attendance.Employee, 0, len(d.employees))
	for _, e := range d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// MEMORY SHIFT STORE
// =============================================================================

type MemoryShifts struct {
	mu     sync.RWMutex
	shifts []attendance.ShiftDefinition
}

func NewMemoryShifts(shifts ...attendance.ShiftDefinition) *MemoryShifts {
	return &MemoryShifts{shifts: shifts}
}

func (s *MemoryShifts) AllShifts(_ context.Context) ([]attendance.ShiftDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]attendance.ShiftDefinition, len(s.shifts))
	copy(out, s.shifts)
	return out, nil
}

func (s *MemoryShifts) ShiftByName(_ context.Context, name string) (attendance.ShiftDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sh := range s.shifts {
		if sh.Name == name {
			return sh, nil
		}
	}
	return attendance.ShiftDefinition{}, attendance.ErrNotFound
}

func (s *MemoryShifts) SaveShift(_ context.Context, def attendance.ShiftDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.shifts {
		if s.shifts[i].Name == def.Name {
			s.shifts[i] = def
			return nil
		}
	}
	s.shifts = append(s.shifts, def)
	return nil
}

// =============================================================================
// MEMORY ATTENDANCE STORE - BatchStore with snapshot rollback
// =============================================================================

type recordKey struct {
	Employee attendance.EmployeeID
	Day      string
}

type Memory struct {
	mu      sync.RWMutex
	days    map[recordKey]attendance.DayRecord
	mandays map[recordKey]attendance.MandaysRecord
	cursor  int64
	runs    []attendance.Run

	// FailNextBatch forces the next WithBatch to roll back, for tests
	// exercising the no-partial-cursor-movement contract.
	FailNextBatch error
}

func NewMemory() *Memory {
	return &Memory{
		days:    make(map[recordKey]attendance.DayRecord),
		mandays: make(map[recordKey]attendance.MandaysRecord),
	}
}

func key(emp attendance.EmployeeID, day attendance.Day) recordKey {
	return recordKey{Employee: emp, Day: day.String()}
}

func (m *Memory) GetDay(_ context.Context, emp attendance.EmployeeID, day attendance.Day) (attendance.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.days[key(emp, day)]
	if !ok {
		return attendance.DayRecord{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListDays(_ context.Context, emp attendance.EmployeeID, from, to attendance.Day) ([]attendance.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []attendance.DayRecord
	for _, rec := range m.days {
		if rec.Employee == emp && !rec.Day.Before(from) && !rec.Day.After(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Memory) UpsertDay(_ context.Context, rec attendance.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[key(rec.Employee, rec.Day)] = rec
	return nil
}

func (m *Memory) GetMandays(_ context.Context, emp attendance.EmployeeID, day attendance.Day) (attendance.MandaysRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.mandays[key(emp, day)]
	if !ok {
		return attendance.MandaysRecord{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (m *Memory) UpsertMandays(_ context.Context, rec attendance.MandaysRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mandays[key(rec.Employee, rec.Day)] = rec
	return nil
}

func (m *Memory) Current(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor, nil
}

func (m *Memory) SetCursor(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = id
	return nil
}

// WithBatch executes fn against a transactional view. On error the
// snapshot is restored: no record write or cursor movement survives.
func (m *Memory) WithBatch(ctx context.Context, fn func(attendance.Batch) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &memoryBatch{parent: m}

	err := fn(view)
	if err == nil && m.FailNextBatch != nil {
		err = m.FailNextBatch
		m.FailNextBatch = nil
	}
	if err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	days    map[recordKey]attendance.DayRecord
	mandays map[recordKey]attendance.MandaysRecord
	cursor  int64
}

func (m *Memory) snapshot() memorySnapshot {
	days := make(map[recordKey]attendance.DayRecord, len(m.days))
	for k, v := range m.days {
		days[k] = v
	}
	mandays := make(map[recordKey]attendance.MandaysRecord, len(m.mandays))
	for k, v := range m.mandays {
		mandays[k] = v
	}
	return memorySnapshot{days: days, mandays: mandays, cursor: m.cursor}
}

func (m *Memory) restore(s memorySnapshot) {
	m.days = s.days
	m.mandays = s.mandays
	m.cursor = s.cursor
}

type memoryBatch struct {
	parent *Memory
}

func (b *memoryBatch) UpsertDay(_ context.Context, rec attendance.DayRecord) error {
	b.parent.days[key(rec.Employee, rec.Day)] = rec
	return nil
}

func (b *memoryBatch) UpsertMandays(_ context.Context, rec attendance.MandaysRecord) error {
	b.parent.mandays[key(rec.Employee, rec.Day)] = rec
	return nil
}

func (b *memoryBatch) AdvanceCursor(_ context.Context, id int64) error {
	b.parent.cursor = id
	return nil
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run attendance.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]attendance.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]attendance.Run, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}
