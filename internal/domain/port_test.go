package domain

import (
	"errors"
	"testing"
)

func TestNewPort(t *testing.T) {
	tests := []struct {
		name     string
		number   int
		protocol Protocol
		wantErr  bool
	}{
		{name: "lowest legal port", number: 1},
		{name: "highest legal port", number: 65535},
		{name: "tcp port", number: 80, protocol: ProtocolTCP},
		{name: "udp port", number: 5800, protocol: ProtocolUDP},
		{name: "zero is invalid", number: 0, wantErr: true},
		{name: "negative is invalid", number: -1, wantErr: true},
		{name: "above range is invalid", number: 65536, wantErr: true},
		{name: "unknown protocol", number: 80, protocol: "sctp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, err := NewPort(tt.number, tt.protocol)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPort) {
					t.Errorf("expected ErrInvalidPort, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if port.Number() != tt.number {
				t.Errorf("expected number %d, got %d", tt.number, port.Number())
			}
			if port.Protocol() != tt.protocol {
				t.Errorf("expected protocol %q, got %q", tt.protocol, port.Protocol())
			}
		})
	}
}

func TestNewPort_ErrorNamesPort(t *testing.T) {
	_, err := NewPort(70000, ProtocolTCP)
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if got, want := err.Error(), "Port 70000/tcp: invalid port"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPort_String(t *testing.T) {
	tests := []struct {
		port Port
		want string
	}{
		{port: MustPort(80, ProtocolAny), want: "Port 80"},
		{port: MustPort(443, ProtocolTCP), want: "Port 443/tcp"},
		{port: MustPort(5800, ProtocolUDP), want: "Port 5800/udp"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.port.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPort_Equality(t *testing.T) {
	a := MustPort(80, ProtocolTCP)
	b := MustPort(80, ProtocolTCP)
	c := MustPort(80, ProtocolUDP)
	d := MustPort(80, ProtocolAny)

	if a != b {
		t.Error("expected ports with same number and protocol to be equal")
	}
	if a == c || a == d {
		t.Error("expected ports with different protocols to differ")
	}

	set := map[Port]bool{a: true}
	if !set[b] {
		t.Error("expected equal ports to hash to the same map key")
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    Port
		wantErr bool
	}{
		{in: "80", want: MustPort(80, ProtocolAny)},
		{in: "80/tcp", want: MustPort(80, ProtocolTCP)},
		{in: " 5800/UDP ", want: MustPort(5800, ProtocolUDP)},
		{in: "http", wantErr: true},
		{in: "0/tcp", wantErr: true},
		{in: "80/icmp", wantErr: true},
		{in: "80/", wantErr: true},
		{in: "80/ ", wantErr: true},
		{in: "/tcp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePort(tt.in)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPort) {
					t.Errorf("expected ErrInvalidPort, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePort(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if back, _ := ParsePort(got.Key()); back != got {
				t.Errorf("Key() %q does not parse back to %v", got.Key(), got)
			}
		})
	}
}
