// Package postgres reads the raw punch log from a replicated Postgres
// table, typically a read replica of the device collector's database.
//
// PURPOSE:
//   - Implement attendance.EventStore over pgx/v5 so the engine can
//     consume punches without owning their ingestion.
//   - The table is append-only from our point of view: this package
//     issues SELECTs only.
//
// TABLE SHAPE (name configurable, defaults to "logs"):
//
//	id            BIGINT PRIMARY KEY   -- strictly increasing
//	employee_id   TEXT                 -- device enroll id
//	log_datetime  TIMESTAMP
//	direction     TEXT                 -- 'in' | 'out'
//	device        TEXT NULL
//
// SEE ALSO:
//   - store/sqlite: embedded single-binary deployments keep the punch
//     log in the same sqlite file as the derived tables.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digitali/attendance-engine/attendance"
)

// Queryer is satisfied by *pgxpool.Pool, pgx.Tx and the pgxmock pool.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventSource implements attendance.EventStore over a Postgres punch
// log table.
type EventSource struct {
	db    Queryer
	table string
}

// validTable rejects table names that cannot be safely interpolated.
// The name comes from the config file, not from request input, but it
// still ends up inside SQL text.
var validTable = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewEventSource wraps an existing queryer. Used directly in tests;
// production code goes through Connect.
func NewEventSource(db Queryer, table string) (*EventSource, error) {
	if table == "" {
		table = "logs"
	}
	if !validTable.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	return &EventSource{db: db, table: table}, nil
}

// Connect opens a pgx pool against dsn, verifies connectivity and
// returns an EventSource reading from table. Close releases the pool.
func Connect(ctx context.Context, dsn, table string) (*EventSource, func(), error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}

	src, err := NewEventSource(pool, table)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return src, pool.Close, nil
}

// FetchEventsAfter returns up to limit events with id > after, ordered
// ascending by id.
func (s *EventSource) FetchEventsAfter(ctx context.Context, after int64, limit int) ([]attendance.RawEvent, error) {
	query := fmt.Sprintf(`
        SELECT id, employee_id, log_datetime, direction, COALESCE(device, '')
          FROM %s
         WHERE id > $1
         ORDER BY id ASC
         LIMIT $2
    `, s.table)

	rows, err := s.db.Query(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch events: %w", err)
	}
	defer rows.Close()

	var events []attendance.RawEvent
	for rows.Next() {
		var (
			ev        attendance.RawEvent
			direction string
		)
		if err := rows.Scan(&ev.ID, &ev.EmployeeID, &ev.Timestamp, &direction, &ev.Device); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		ev.Direction = attendance.Direction(direction)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate events: %w", err)
	}
	return events, nil
}

// LastIDBefore returns the highest event id with a timestamp strictly
// before t, or 0 if none exists.
func (s *EventSource) LastIDBefore(ctx context.Context, t time.Time) (int64, error) {
	query := fmt.Sprintf(`
        SELECT COALESCE(MAX(id), 0)
          FROM %s
         WHERE log_datetime < $1
    `, s.table)

	var id int64
	if err := s.db.QueryRow(ctx, query, t).Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: last id before: %w", err)
	}
	return id, nil
}
