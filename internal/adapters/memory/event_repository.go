package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/frc5024/portguard/internal/domain"
)

// EventRepository implements domain.EventRepository with in-memory storage
type EventRepository struct {
	mu     sync.RWMutex
	events map[int64]*domain.AllocationEvent
	nextID int64
}

// NewEventRepository creates an empty in-memory journal
func NewEventRepository() *EventRepository {
	return &EventRepository{
		events: make(map[int64]*domain.AllocationEvent),
		nextID: 1,
	}
}

// SaveEvent stores an event in memory
func (r *EventRepository) SaveEvent(ctx context.Context, event *domain.AllocationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == 0 {
		event.ID = r.nextID
		r.nextID++
	}

	stored := *event
	r.events[event.ID] = &stored
	return nil
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*domain.AllocationEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return nil, domain.ErrEventNotFound
	}

	out := *event
	return &out, nil
}

// GetEventsInRange returns all events in [start, end), oldest first
func (r *EventRepository) GetEventsInRange(ctx context.Context, start, end time.Time) ([]*domain.AllocationEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.AllocationEvent
	for _, event := range r.events {
		if !event.Timestamp.Before(start) && event.Timestamp.Before(end) {
			out := *event
			results = append(results, &out)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].ID < results[j].ID
		}
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	return results, nil
}

// GetLatestEvent returns the most recent event for port
func (r *EventRepository) GetLatestEvent(ctx context.Context, port domain.Port) (*domain.AllocationEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.AllocationEvent
	for _, event := range r.events {
		if event.Port != port {
			continue
		}
		if latest == nil || event.Timestamp.After(latest.Timestamp) ||
			(event.Timestamp.Equal(latest.Timestamp) && event.ID > latest.ID) {
			latest = event
		}
	}

	if latest == nil {
		return nil, domain.ErrEventNotFound
	}

	out := *latest
	return &out, nil
}

// DeleteOldEvents removes events older than specified duration
func (r *EventRepository) DeleteOldEvents(ctx context.Context, olderThan time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)

	for id, event := range r.events {
		if event.Timestamp.Before(cutoff) {
			delete(r.events, id)
		}
	}

	return nil
}
