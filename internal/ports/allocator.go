package ports

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/frc5024/portguard/internal/domain"
)

// Allocator fronts a PortRegistry for the rest of the process.
// The registry makes the admission decision; the journal and stats are
// written afterwards, outside the registry lock, and only on a best-effort
// basis: their failures are logged, never returned.
type Allocator struct {
	registry *domain.PortRegistry
	journal  domain.EventRepository
	stats    domain.StatsStore
}

// NewAllocator wires a registry to its journal and stats store.
// journal and stats may be nil.
func NewAllocator(registry *domain.PortRegistry, journal domain.EventRepository, stats domain.StatsStore) *Allocator {
	return &Allocator{
		registry: registry,
		journal:  journal,
		stats:    stats,
	}
}

// Registry returns the underlying registry
func (a *Allocator) Registry() *domain.PortRegistry {
	return a.registry
}

// Allocate claims port for holder
func (a *Allocator) Allocate(ctx context.Context, port domain.Port, holder string) (domain.Port, error) {
	granted, at, err := a.registry.AllocateStamped(port, holder)

	if ev := domain.EventForAllocation(port, holder, err); ev != nil {
		// Journal in decision order, not in the order records land
		ev.Timestamp = at
		a.record(ctx, ev)
	}

	if err != nil {
		logRefusal(port, holder, err)
		return domain.Port{}, err
	}

	log.Info().
		Str("port", port.Key()).
		Str("holder", holder).
		Msg("port allocated")

	return granted, nil
}

// Release frees port. holder is only used for the journal.
func (a *Allocator) Release(ctx context.Context, port domain.Port, holder string) error {
	at, err := a.registry.ReleaseStamped(port)
	if err != nil {
		// A release of an unheld port is a caller bug: say so loudly
		log.Error().
			Err(err).
			Str("port", port.Key()).
			Str("holder", holder).
			Msg("release of port that is not allocated")
		return err
	}

	ev := domain.NewAllocationEvent(port, domain.ActionRelease, holder)
	ev.Timestamp = at
	a.record(ctx, ev)

	log.Info().
		Str("port", port.Key()).
		Str("holder", holder).
		Msg("port released")

	return nil
}

// IsAllocated reports whether port is held
func (a *Allocator) IsAllocated(port domain.Port) bool {
	return a.registry.IsAllocated(port)
}

// Reserve allocates each port for holder, stopping at the first failure
func (a *Allocator) Reserve(ctx context.Context, holder string, ports ...domain.Port) error {
	for _, p := range ports {
		if _, err := a.Allocate(ctx, p, holder); err != nil {
			return err
		}
	}
	return nil
}

// History returns journal entries in [start, end)
func (a *Allocator) History(ctx context.Context, start, end time.Time) ([]*domain.AllocationEvent, error) {
	if a.journal == nil {
		return nil, nil
	}
	return a.journal.GetEventsInRange(ctx, start, end)
}

// ErrStatsDisabled is returned by Stats when no stats store is configured
var ErrStatsDisabled = errors.New("admission stats disabled")

// Stats returns the cumulative admission counters
func (a *Allocator) Stats(ctx context.Context) (domain.StatsTotals, error) {
	if a.stats == nil {
		return domain.StatsTotals{}, ErrStatsDisabled
	}
	return a.stats.Totals(ctx)
}

// PruneHistory deletes journal entries older than retention
func (a *Allocator) PruneHistory(ctx context.Context, retention time.Duration) error {
	if a.journal == nil {
		return nil
	}
	return a.journal.DeleteOldEvents(ctx, retention)
}

// record stores a journal entry and, for admission decisions, a stats sample
func (a *Allocator) record(ctx context.Context, ev *domain.AllocationEvent) {
	if a.journal != nil {
		if err := a.journal.SaveEvent(ctx, ev); err != nil {
			log.Error().Err(err).Str("port", ev.Port.Key()).Msg("failed to save allocation event")
		}
	}

	if a.stats == nil || ev.Action == domain.ActionRelease {
		return
	}

	d := domain.Decision{
		Port:    ev.Port,
		Allowed: !ev.Refused(),
		Action:  ev.Action,
		Policy:  ev.Policy,
		At:      ev.Timestamp,
	}
	if err := a.stats.Record(ctx, d); err != nil {
		log.Warn().Err(err).Msg("failed to record admission stats")
	}
}

func logRefusal(port domain.Port, holder string, err error) {
	ev := log.Warn()
	if errors.Is(err, domain.ErrPortRejected) {
		// Rejections are configuration errors, not contention
		ev = log.Error()
		if policy, ok := domain.RejectingPolicy(err); ok {
			ev = ev.Str("policy", policy)
		}
	}

	ev.Err(err).
		Str("port", port.Key()).
		Str("holder", holder).
		Msg("port allocation refused")
}
