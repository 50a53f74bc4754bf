package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinPortNumber is the lowest transport port that can be claimed
	MinPortNumber = 1

	// MaxPortNumber is the highest transport port that can be claimed
	MaxPortNumber = 65535
)

// Protocol tags a port with the transport it belongs to
type Protocol string

const (
	// ProtocolAny means the port is not tied to a transport
	ProtocolAny Protocol = ""
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol converts user input ("TCP", "udp", "") into a Protocol
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case ProtocolAny, ProtocolTCP, ProtocolUDP:
		return p, nil
	default:
		return ProtocolAny, fmt.Errorf("unknown protocol %q", s)
	}
}

// Port identifies a transport-layer endpoint number plus an optional protocol.
// This is a value object - it is compared by value and used as a map key.
type Port struct {
	number   uint16
	protocol Protocol
}

// NewPort creates a port with validation
func NewPort(number int, protocol Protocol) (Port, error) {
	// Business rule: only 1-65535 is a legal transport port
	if number < MinPortNumber || number > MaxPortNumber {
		return Port{}, &PortError{Number: number, Protocol: protocol, Err: ErrInvalidPort}
	}

	if _, err := ParseProtocol(string(protocol)); err != nil {
		return Port{}, &PortError{Number: number, Protocol: protocol, Err: ErrInvalidPort}
	}

	return Port{number: uint16(number), protocol: protocol}, nil
}

// MustPort is like NewPort but panics on invalid input.
// Intended for package-level tables and tests.
func MustPort(number int, protocol Protocol) Port {
	p, err := NewPort(number, protocol)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePort parses "80", "80/tcp" or "5800/UDP"
func ParsePort(s string) (Port, error) {
	numStr, protoStr, slash := strings.Cut(strings.TrimSpace(s), "/")
	if slash && strings.TrimSpace(protoStr) == "" {
		return Port{}, fmt.Errorf("invalid port %q: missing protocol after '/': %w", s, ErrInvalidPort)
	}

	number, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil {
		return Port{}, fmt.Errorf("invalid port %q: %w", s, ErrInvalidPort)
	}

	protocol, err := ParseProtocol(protoStr)
	if err != nil {
		return Port{}, fmt.Errorf("invalid port %q: %w", s, ErrInvalidPort)
	}

	return NewPort(number, protocol)
}

// Number returns the transport port number
func (p Port) Number() int {
	return int(p.number)
}

// Protocol returns the protocol tag, ProtocolAny if none
func (p Port) Protocol() Protocol {
	return p.protocol
}

// IsZero reports whether p is the zero value (never a valid port)
func (p Port) IsZero() bool {
	return p.number == 0
}

// String returns the diagnostic form "Port 80" or "Port 80/tcp"
func (p Port) String() string {
	return formatPort(int(p.number), p.protocol)
}

// Key returns the compact "80/tcp" form used by storage and the wire API
func (p Port) Key() string {
	if p.protocol == ProtocolAny {
		return strconv.Itoa(int(p.number))
	}
	return strconv.Itoa(int(p.number)) + "/" + string(p.protocol)
}

// matches reports whether a set entry covers the candidate port.
// An entry without a protocol covers the number under every protocol.
func (p Port) matches(candidate Port) bool {
	if p.number != candidate.number {
		return false
	}
	return p.protocol == ProtocolAny || p.protocol == candidate.protocol
}

func formatPort(number int, protocol Protocol) string {
	if protocol == ProtocolAny {
		return fmt.Sprintf("Port %d", number)
	}
	return fmt.Sprintf("Port %d/%s", number, protocol)
}
