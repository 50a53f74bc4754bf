package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// PolicyKind tags the rule shape of a firewall policy
type PolicyKind string

const (
	KindAllowList     PolicyKind = "allow"
	KindDenyList      PolicyKind = "deny"
	KindRange         PolicyKind = "range"
	KindProtocolRange PolicyKind = "protocol-range"
)

// Policy is a named, pure predicate deciding whether a port may be claimed.
// The variant set is closed: AllowListPolicy, DenyListPolicy, RangePolicy
// and ProtocolRangePolicy. Policies are immutable once constructed.
type Policy interface {
	// Name identifies the policy inside a registry
	Name() string

	// Kind returns the rule shape
	Kind() PolicyKind

	// IsValidPort reports whether the policy permits the port
	IsValidPort(port Port) bool

	// String describes the rule for diagnostics
	String() string

	sealed()
}

// PortRange is an inclusive range of port numbers
type PortRange struct {
	Min int
	Max int
}

// Validate checks the range is ordered and inside 1-65535
func (r PortRange) Validate() error {
	if r.Min < MinPortNumber || r.Max > MaxPortNumber || r.Min > r.Max {
		return fmt.Errorf("%w: range %d-%d", ErrInvalidPolicy, r.Min, r.Max)
	}
	return nil
}

// Contains reports whether n lies in [Min, Max]
func (r PortRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

func (r PortRange) String() string {
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// portSet holds allow/deny entries. An entry without a protocol covers
// the number under every protocol.
type portSet map[Port]struct{}

func newPortSet(ports []Port) portSet {
	set := make(portSet, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}

func (s portSet) contains(p Port) bool {
	if _, ok := s[p]; ok {
		return true
	}
	_, ok := s[Port{number: p.number}]
	return ok
}

func (s portSet) sorted() []Port {
	out := make([]Port, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.SortFunc(out, ComparePorts)
	return out
}

func (s portSet) String() string {
	keys := make([]string, 0, len(s))
	for _, p := range s.sorted() {
		keys = append(keys, p.Key())
	}
	return strings.Join(keys, ", ")
}

// ComparePorts orders ports by number, then protocol
func ComparePorts(a, b Port) int {
	if c := cmp.Compare(a.number, b.number); c != 0 {
		return c
	}
	return cmp.Compare(a.protocol, b.protocol)
}

func validatePolicyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	return nil
}

// AllowListPolicy permits only the configured ports
type AllowListPolicy struct {
	name  string
	ports portSet
}

// NewAllowListPolicy creates an allow-list policy
func NewAllowListPolicy(name string, ports ...Port) (*AllowListPolicy, error) {
	if err := validatePolicyName(name); err != nil {
		return nil, err
	}
	return &AllowListPolicy{name: name, ports: newPortSet(ports)}, nil
}

func (p *AllowListPolicy) Name() string     { return p.name }
func (p *AllowListPolicy) Kind() PolicyKind { return KindAllowList }
func (p *AllowListPolicy) Ports() []Port    { return p.ports.sorted() }
func (p *AllowListPolicy) sealed()          {}

func (p *AllowListPolicy) IsValidPort(port Port) bool {
	return p.ports.contains(port)
}

func (p *AllowListPolicy) String() string {
	return fmt.Sprintf("allow [%s]", p.ports)
}

// DenyListPolicy permits every port except the configured ones
type DenyListPolicy struct {
	name  string
	ports portSet
}

// NewDenyListPolicy creates a deny-list policy
func NewDenyListPolicy(name string, ports ...Port) (*DenyListPolicy, error) {
	if err := validatePolicyName(name); err != nil {
		return nil, err
	}
	return &DenyListPolicy{name: name, ports: newPortSet(ports)}, nil
}

func (p *DenyListPolicy) Name() string     { return p.name }
func (p *DenyListPolicy) Kind() PolicyKind { return KindDenyList }
func (p *DenyListPolicy) Ports() []Port    { return p.ports.sorted() }
func (p *DenyListPolicy) sealed()          {}

func (p *DenyListPolicy) IsValidPort(port Port) bool {
	return !p.ports.contains(port)
}

func (p *DenyListPolicy) String() string {
	return fmt.Sprintf("deny [%s]", p.ports)
}

// RangePolicy permits port numbers inside an inclusive range, any protocol
type RangePolicy struct {
	name string
	r    PortRange
}

// NewRangePolicy creates a range policy over [min, max]
func NewRangePolicy(name string, min, max int) (*RangePolicy, error) {
	if err := validatePolicyName(name); err != nil {
		return nil, err
	}
	r := PortRange{Min: min, Max: max}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &RangePolicy{name: name, r: r}, nil
}

func (p *RangePolicy) Name() string     { return p.name }
func (p *RangePolicy) Kind() PolicyKind { return KindRange }
func (p *RangePolicy) Range() PortRange { return p.r }
func (p *RangePolicy) sealed()          {}

func (p *RangePolicy) IsValidPort(port Port) bool {
	return p.r.Contains(port.Number())
}

func (p *RangePolicy) String() string {
	return fmt.Sprintf("range [%s]", p.r)
}

// ProtocolRangePolicy permits a port only if its protocol has a range
// containing the number. Ports without a protocol are never permitted.
type ProtocolRangePolicy struct {
	name   string
	ranges map[Protocol][]PortRange
}

// NewProtocolRangePolicy creates a per-protocol range policy.
// The ranges map is copied.
func NewProtocolRangePolicy(name string, ranges map[Protocol][]PortRange) (*ProtocolRangePolicy, error) {
	if err := validatePolicyName(name); err != nil {
		return nil, err
	}

	copied := make(map[Protocol][]PortRange, len(ranges))
	for proto, rs := range ranges {
		if proto == ProtocolAny {
			return nil, fmt.Errorf("%w: protocol range without protocol", ErrInvalidPolicy)
		}
		if _, err := ParseProtocol(string(proto)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		for _, r := range rs {
			if err := r.Validate(); err != nil {
				return nil, err
			}
		}
		copied[proto] = slices.Clone(rs)
	}

	return &ProtocolRangePolicy{name: name, ranges: copied}, nil
}

func (p *ProtocolRangePolicy) Name() string     { return p.name }
func (p *ProtocolRangePolicy) Kind() PolicyKind { return KindProtocolRange }
func (p *ProtocolRangePolicy) sealed()          {}

func (p *ProtocolRangePolicy) IsValidPort(port Port) bool {
	for _, r := range p.ranges[port.Protocol()] {
		if r.Contains(port.Number()) {
			return true
		}
	}
	return false
}

func (p *ProtocolRangePolicy) String() string {
	protos := make([]Protocol, 0, len(p.ranges))
	for proto := range p.ranges {
		protos = append(protos, proto)
	}
	slices.Sort(protos)

	parts := make([]string, 0, len(protos))
	for _, proto := range protos {
		rs := make([]string, len(p.ranges[proto]))
		for i, r := range p.ranges[proto] {
			rs[i] = r.String()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", proto, strings.Join(rs, ", ")))
	}
	return fmt.Sprintf("protocol-range [%s]", strings.Join(parts, "; "))
}

// FMS2014PolicyName is the name of the field-management-system preset
const FMS2014PolicyName = "FRC 2014+ Firewall"

// FMS2014Ranges returns the port openings of the FRC field network
// (2014 season onwards). Each call returns a fresh map.
func FMS2014Ranges() map[Protocol][]PortRange {
	return map[Protocol][]PortRange{
		ProtocolUDP: {
			{Min: 1180, Max: 1190},
			{Min: 1130, Max: 1130},
			{Min: 1140, Max: 1140},
			{Min: 554, Max: 554},
			{Min: 5800, Max: 5810},
		},
		ProtocolTCP: {
			{Min: 1180, Max: 1190},
			{Min: 1735, Max: 1735},
			{Min: 80, Max: 80},
			{Min: 443, Max: 443},
			{Min: 554, Max: 554},
			{Min: 5800, Max: 5801},
		},
	}
}

// NewFMS2014Policy returns the field firewall as a policy.
// Only protocol-tagged ports can pass it.
func NewFMS2014Policy() *ProtocolRangePolicy {
	p, err := NewProtocolRangePolicy(FMS2014PolicyName, FMS2014Ranges())
	if err != nil {
		panic(err)
	}
	return p
}
