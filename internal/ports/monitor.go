package ports

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor handles periodic sensor sampling and journal retention
type Monitor struct {
	gyros     map[string]Gyroscope
	switches  map[string]BinarySensor
	allocator *Allocator
	interval  time.Duration
	retention time.Duration
}

// DefaultMonitorInterval is used when NewMonitor gets a non-positive interval
const DefaultMonitorInterval = time.Minute

// NewMonitor creates a new background monitor.
// A non-positive interval falls back to DefaultMonitorInterval; a
// non-positive retention disables pruning.
func NewMonitor(allocator *Allocator, interval, retention time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{
		gyros:     make(map[string]Gyroscope),
		switches:  make(map[string]BinarySensor),
		allocator: allocator,
		interval:  interval,
		retention: retention,
	}
}

// AddGyroscope registers a gyroscope to sample. Call before Start.
func (m *Monitor) AddGyroscope(name string, g Gyroscope) {
	m.gyros[name] = g
}

// AddBinarySensor registers a binary sensor to sample. Call before Start.
func (m *Monitor) AddBinarySensor(name string, s BinarySensor) {
	m.switches[name] = s
}

// Sample is one reading of every registered sensor
type Sample struct {
	Headings map[string]float64
	States   map[string]bool
}

// Start begins periodic sampling
// This runs in a goroutine until context is cancelled
func (m *Monitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", m.interval).
		Dur("retention", m.retention).
		Msg("starting sensor monitor")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer cleanupTicker.Stop()

	// Sample immediately on start
	m.sampleOnce(ctx)

	for {
		select {
		case <-ticker.C:
			m.sampleOnce(ctx)

		case <-cleanupTicker.C:
			m.prune(ctx)

		case <-ctx.Done():
			log.Info().Msg("stopping sensor monitor")
			return
		}
	}
}

// SampleNow reads every registered sensor once
func (m *Monitor) SampleNow() Sample {
	s := Sample{
		Headings: make(map[string]float64, len(m.gyros)),
		States:   make(map[string]bool, len(m.switches)),
	}
	for name, g := range m.gyros {
		s.Headings[name] = g.WrappedAngle()
	}
	for name, b := range m.switches {
		s.States[name] = b.Get()
	}
	return s
}

// sampleOnce reads sensors and logs them
func (m *Monitor) sampleOnce(ctx context.Context) {
	sample := m.SampleNow()

	for _, name := range sortedKeys(sample.Headings) {
		log.Debug().
			Str("sensor", name).
			Float64("heading", sample.Headings[name]).
			Msg("gyroscope sample")
	}
	for _, name := range sortedKeys(sample.States) {
		log.Debug().
			Str("sensor", name).
			Bool("triggered", sample.States[name]).
			Msg("binary sensor sample")
	}

	if m.allocator != nil {
		m.logStats(ctx)
	}
}

// logStats reports registry occupancy and the admission counters
func (m *Monitor) logStats(ctx context.Context) {
	ev := log.Info().Int("allocated", m.allocator.Registry().Len())

	totals, err := m.allocator.Stats(ctx)
	switch {
	case errors.Is(err, ErrStatsDisabled):
	case err != nil:
		log.Warn().Err(err).Msg("failed to read admission stats")
	default:
		ev = ev.
			Int64("allowed", totals.Allowed).
			Int64("conflicts", totals.Conflicts).
			Int64("rejected", totals.Rejected)
		for _, policy := range sortedKeys(totals.ByPolicy) {
			ev = ev.Int64("rejected_by."+policy, totals.ByPolicy[policy])
		}
	}

	ev.Msg("port registry status")
}

func (m *Monitor) prune(ctx context.Context) {
	if m.allocator == nil || m.retention <= 0 {
		return
	}
	if err := m.allocator.PruneHistory(ctx, m.retention); err != nil {
		log.Error().Err(err).Msg("failed to delete old allocation events")
		return
	}
	log.Info().Dur("retention", m.retention).Msg("deleted old allocation events")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
