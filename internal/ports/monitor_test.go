package ports_test

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/frc5024/portguard/internal/adapters/memory"
	"github.com/frc5024/portguard/internal/adapters/mock"
	"github.com/frc5024/portguard/internal/domain"
	"github.com/frc5024/portguard/internal/ports"
)

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: 0, want: 0},
		{in: 90, want: 90},
		{in: 360, want: 0},
		{in: 725, want: 5},
		{in: -90, want: 270},
		{in: -720, want: 0},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			got := ports.WrapAngle(tt.in)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("WrapAngle(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got < 0 || got >= 360 {
				t.Errorf("WrapAngle(%v) = %v, outside [0, 360)", tt.in, got)
			}
		})
	}
}

func TestMonitor_SampleNow(t *testing.T) {
	m := ports.NewMonitor(nil, time.Minute, 0)
	m.AddGyroscope("navx", mock.NewFakeGyro(-30, 0, 0))
	m.AddBinarySensor("intake", mock.NewLimitSwitch(false))

	sample := m.SampleNow()

	if got := sample.Headings["navx"]; got != 330 {
		t.Errorf("expected heading 330, got %v", got)
	}
	if !sample.States["intake"] {
		t.Error("expected intake limit switch to read pressed")
	}
}

func TestMonitor_StopsOnCancel(t *testing.T) {
	a := ports.NewAllocator(domain.NewPortRegistry(), nil, nil)
	m := ports.NewMonitor(a, 5*time.Millisecond, time.Hour)
	m.AddGyroscope("navx", mock.NewFakeGyro(0, 1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after context cancellation")
	}
}

func TestMonitor_NonPositiveInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		m := ports.NewMonitor(nil, d, -time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Must fall back to the default rather than panic in NewTicker
		m.Start(ctx)
	}
}

func TestMonitor_LogsAdmissionStats(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	registry := domain.NewPortRegistry()
	noSSH, err := domain.NewDenyListPolicy("no-ssh", domain.MustPort(22, domain.ProtocolAny))
	if err != nil {
		t.Fatalf("NewDenyListPolicy failed: %v", err)
	}
	if err := registry.RegisterPolicy(noSSH); err != nil {
		t.Fatalf("RegisterPolicy failed: %v", err)
	}
	a := ports.NewAllocator(registry, nil, memory.NewStatsStore())

	ctx, cancel := context.WithCancel(context.Background())
	_, _ = a.Allocate(ctx, domain.MustPort(80, domain.ProtocolTCP), "web")
	_, _ = a.Allocate(ctx, domain.MustPort(22, domain.ProtocolTCP), "shell")

	cancel()
	ports.NewMonitor(a, time.Minute, 0).Start(ctx)

	out := buf.String()
	for _, want := range []string{`"allocated":1`, `"allowed":1`, `"rejected":1`, `"rejected_by.no-ssh":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in monitor log, got:\n%s", want, out)
		}
	}
}
