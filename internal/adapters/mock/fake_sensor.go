package mock

import (
	"math/rand"
	"sync"

	"github.com/frc5024/portguard/internal/ports"
)

// FakeGyro simulates a gyroscope for development
// This implements the ports.Gyroscope interface
type FakeGyro struct {
	mu    sync.Mutex
	angle float64
	drift float64
	noise float64
}

// NewFakeGyro creates a gyro that starts at angle
// drift: degrees added on every read (sensor drift, robot turning)
// noise: +/- random jitter applied to each read
func NewFakeGyro(angle, drift, noise float64) *FakeGyro {
	return &FakeGyro{
		angle: angle,
		drift: drift,
		noise: noise,
	}
}

// Angle returns the accumulated, non-wrapping angle
func (g *FakeGyro) Angle() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.angle += g.drift
	if g.noise == 0 {
		return g.angle
	}
	return g.angle + (rand.Float64()-0.5)*2*g.noise
}

// WrappedAngle returns the angle wrapped into [0, 360)
func (g *FakeGyro) WrappedAngle() float64 {
	return ports.WrapAngle(g.Angle())
}

// Reset zeroes the accumulated angle
func (g *FakeGyro) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.angle = 0
}

// FakeSwitch simulates a digital input
// This implements the ports.BinarySensor interface
type FakeSwitch struct {
	mu       sync.Mutex
	raw      bool
	inverted bool
}

// NewLimitSwitch simulates a normally-closed limit switch:
// the raw input reads high while the switch is released.
func NewLimitSwitch(raw bool) *FakeSwitch {
	return &FakeSwitch{raw: raw, inverted: true}
}

// NewLineBreak simulates a beam-break sensor reporting its raw input
func NewLineBreak(raw bool) *FakeSwitch {
	return &FakeSwitch{raw: raw}
}

// SetRaw changes the simulated electrical input
func (s *FakeSwitch) SetRaw(raw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
}

// Get reports whether the sensor is triggered
func (s *FakeSwitch) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw != s.inverted
}
