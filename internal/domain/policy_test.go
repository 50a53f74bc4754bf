package domain

import (
	"errors"
	"testing"
)

func TestAllowListPolicy(t *testing.T) {
	policy, err := NewAllowListPolicy("web", MustPort(80, ProtocolAny), MustPort(443, ProtocolTCP))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		port Port
		want bool
	}{
		{port: MustPort(80, ProtocolAny), want: true},
		{port: MustPort(80, ProtocolTCP), want: true}, // entry without protocol covers tcp
		{port: MustPort(80, ProtocolUDP), want: true},
		{port: MustPort(443, ProtocolTCP), want: true},
		{port: MustPort(443, ProtocolUDP), want: false},
		{port: MustPort(81, ProtocolAny), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.port.String(), func(t *testing.T) {
			if got := policy.IsValidPort(tt.port); got != tt.want {
				t.Errorf("IsValidPort(%v) = %v, want %v", tt.port, got, tt.want)
			}
		})
	}

	if got, want := policy.String(), "allow [80, 443/tcp]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDenyListPolicy(t *testing.T) {
	policy, err := NewDenyListPolicy("no-ssh", MustPort(22, ProtocolAny))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if policy.IsValidPort(MustPort(22, ProtocolTCP)) {
		t.Error("expected 22/tcp to be denied")
	}
	if !policy.IsValidPort(MustPort(80, ProtocolTCP)) {
		t.Error("expected 80/tcp to be permitted")
	}
}

func TestRangePolicy(t *testing.T) {
	policy, err := NewRangePolicy("privileged", 1, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		number int
		want   bool
	}{
		{number: 1, want: true},
		{number: 1024, want: true},
		{number: 1025, want: false},
		{number: 2048, want: false},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := policy.IsValidPort(MustPort(tt.number, ProtocolUDP)); got != tt.want {
				t.Errorf("IsValidPort(%d) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}

func TestNewRangePolicy_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{name: "reversed", min: 100, max: 10},
		{name: "below range", min: 0, max: 10},
		{name: "above range", min: 10, max: 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRangePolicy("r", tt.min, tt.max); !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestPolicy_EmptyNameRejected(t *testing.T) {
	if _, err := NewAllowListPolicy(" "); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestFMS2014Policy(t *testing.T) {
	policy := NewFMS2014Policy()

	if policy.Name() != FMS2014PolicyName {
		t.Errorf("expected name %q, got %q", FMS2014PolicyName, policy.Name())
	}

	tests := []struct {
		port Port
		want bool
	}{
		{port: MustPort(1735, ProtocolTCP), want: true},
		{port: MustPort(1735, ProtocolUDP), want: false},
		{port: MustPort(1185, ProtocolUDP), want: true}, // inside 1180-1190
		{port: MustPort(5805, ProtocolUDP), want: true},
		{port: MustPort(5805, ProtocolTCP), want: false}, // tcp stops at 5801
		{port: MustPort(5801, ProtocolTCP), want: true},
		{port: MustPort(80, ProtocolTCP), want: true},
		{port: MustPort(80, ProtocolAny), want: false},
		{port: MustPort(22, ProtocolTCP), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.port.String(), func(t *testing.T) {
			if got := policy.IsValidPort(tt.port); got != tt.want {
				t.Errorf("IsValidPort(%v) = %v, want %v", tt.port, got, tt.want)
			}
		})
	}
}

func TestNewProtocolRangePolicy_CopiesInput(t *testing.T) {
	ranges := map[Protocol][]PortRange{ProtocolTCP: {{Min: 10, Max: 20}}}
	policy, err := NewProtocolRangePolicy("p", ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ranges[ProtocolTCP][0] = PortRange{Min: 100, Max: 200}

	if !policy.IsValidPort(MustPort(15, ProtocolTCP)) {
		t.Error("expected policy to be unaffected by later changes to its input")
	}
}

func TestNewProtocolRangePolicy_RequiresProtocol(t *testing.T) {
	_, err := NewProtocolRangePolicy("p", map[Protocol][]PortRange{ProtocolAny: {{Min: 1, Max: 2}}})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}
