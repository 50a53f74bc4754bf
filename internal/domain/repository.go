package domain

import (
	"context"
	"errors"
	"time"
)

// ErrEventNotFound indicates the requested journal entry doesn't exist
var ErrEventNotFound = errors.New("allocation event not found")

// EventRepository defines operations for storing/retrieving journal entries
// This is a PORT - adapters (SQLite, Memory) will implement it
type EventRepository interface {
	// SaveEvent persists an event and assigns its ID
	SaveEvent(ctx context.Context, event *AllocationEvent) error

	// GetEvent retrieves a specific event by ID
	GetEvent(ctx context.Context, id int64) (*AllocationEvent, error)

	// GetEventsInRange retrieves all events within time range.
	// Uses a half-open interval: inclusive start, exclusive end [start, end).
	GetEventsInRange(ctx context.Context, start, end time.Time) ([]*AllocationEvent, error)

	// GetLatestEvent retrieves the most recent event for a port
	GetLatestEvent(ctx context.Context, port Port) (*AllocationEvent, error)

	// DeleteOldEvents removes events older than specified duration
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) error
}

// Decision is the outcome of one admission decision
type Decision struct {
	Port    Port
	Allowed bool
	Action  EventAction
	Policy  string
	At      time.Time
}

// StatsTotals is a snapshot of the cumulative admission counters
type StatsTotals struct {
	Allowed   int64
	Conflicts int64
	Rejected  int64
	ByPolicy  map[string]int64 // rejections per policy name
}

// Decisions returns the number of admission decisions counted
func (t StatsTotals) Decisions() int64 {
	return t.Allowed + t.Conflicts + t.Rejected
}

// StatsStore records admission decisions.
// Record is best effort: callers log errors and carry on.
type StatsStore interface {
	Record(ctx context.Context, d Decision) error

	// Totals reads the cumulative counters
	Totals(ctx context.Context) (StatsTotals, error)
}
