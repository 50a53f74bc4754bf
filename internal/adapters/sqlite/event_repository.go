package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/frc5024/portguard/internal/domain"
)

// EventRepository implements domain.EventRepository with SQLite.
// Timestamps are stored as Unix nanoseconds so range queries compare integers.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a SQLite-backed journal
func NewEventRepository(dbPath string) (*EventRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create table if not exists
	schema := `
	CREATE TABLE IF NOT EXISTS allocation_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		port INTEGER NOT NULL,
		protocol TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		policy TEXT NOT NULL DEFAULT '',
		holder TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON allocation_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_port ON allocation_events(port, protocol);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &EventRepository{db: db}, nil
}

// SaveEvent stores an event in SQLite
func (r *EventRepository) SaveEvent(ctx context.Context, event *domain.AllocationEvent) error {
	query := `INSERT INTO allocation_events (port, protocol, action, policy, holder, timestamp) VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		event.Port.Number(),
		string(event.Port.Protocol()),
		string(event.Action),
		event.Policy,
		event.Holder,
		event.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert id: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*domain.AllocationEvent, error) {
	query := `SELECT id, port, protocol, action, policy, holder, timestamp FROM allocation_events WHERE id = ?`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}

	return event, nil
}

// GetEventsInRange returns all events in [start, end), oldest first
func (r *EventRepository) GetEventsInRange(ctx context.Context, start, end time.Time) ([]*domain.AllocationEvent, error) {
	query := `
		SELECT id, port, protocol, action, policy, holder, timestamp
		FROM allocation_events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AllocationEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// GetLatestEvent returns the most recent event for port
func (r *EventRepository) GetLatestEvent(ctx context.Context, port domain.Port) (*domain.AllocationEvent, error) {
	query := `
		SELECT id, port, protocol, action, policy, holder, timestamp
		FROM allocation_events
		WHERE port = ? AND protocol = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, port.Number(), string(port.Protocol())))
	if err == sql.ErrNoRows {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest event: %w", err)
	}

	return event, nil
}

// DeleteOldEvents removes events older than specified duration
func (r *EventRepository) DeleteOldEvents(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	query := `DELETE FROM allocation_events WHERE timestamp < ?`

	if _, err := r.db.ExecContext(ctx, query, cutoff.UnixNano()); err != nil {
		return fmt.Errorf("failed to delete old events: %w", err)
	}

	return nil
}

// Close closes the database connection
func (r *EventRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*domain.AllocationEvent, error) {
	var (
		event    domain.AllocationEvent
		number   int
		protocol string
		action   string
		nanos    int64
	)

	if err := row.Scan(&event.ID, &number, &protocol, &action, &event.Policy, &event.Holder, &nanos); err != nil {
		return nil, err
	}

	port, err := domain.NewPort(number, domain.Protocol(protocol))
	if err != nil {
		return nil, fmt.Errorf("corrupt event %d: %w", event.ID, err)
	}

	event.Port = port
	event.Action = domain.EventAction(action)
	event.Timestamp = time.Unix(0, nanos)
	return &event, nil
}
