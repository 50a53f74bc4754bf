package memory

import (
	"context"
	"sync"

	"github.com/frc5024/portguard/internal/domain"
)

// Counters tallies admission decisions
type Counters struct {
	Allowed   int64
	Conflicts int64
	Rejected  int64
}

// StatsStore keeps admission counters in memory.
// Useful for tests and single-process deployments; nothing expires.
type StatsStore struct {
	mu       sync.Mutex
	total    Counters
	byPolicy map[string]int64
}

// NewStatsStore creates an empty stats store
func NewStatsStore() *StatsStore {
	return &StatsStore{
		byPolicy: make(map[string]int64),
	}
}

// Record counts one admission decision
func (s *StatsStore) Record(_ context.Context, d domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case d.Allowed:
		s.total.Allowed++
	case d.Action == domain.ActionConflict:
		s.total.Conflicts++
	default:
		s.total.Rejected++
		if d.Policy != "" {
			s.byPolicy[d.Policy]++
		}
	}
	return nil
}

// Total returns the overall counters
func (s *StatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Totals returns a snapshot of every counter
func (s *StatsStore) Totals(_ context.Context) (domain.StatsTotals, error) {
	total := s.Total()
	return domain.StatsTotals{
		Allowed:   total.Allowed,
		Conflicts: total.Conflicts,
		Rejected:  total.Rejected,
		ByPolicy:  s.RejectionsByPolicy(),
	}, nil
}

// RejectionsByPolicy returns how often each policy vetoed a port
func (s *StatsStore) RejectionsByPolicy() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byPolicy))
	for k, v := range s.byPolicy {
		out[k] = v
	}
	return out
}
