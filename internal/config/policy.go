// Package config loads firewall policy files.
//
// A policy file lists the policies to register, in order, and the ports to
// reserve when the process starts:
//
//	policies:
//	  - name: field
//	    preset: fms2014
//	  - name: no-ssh
//	    deny: ["22"]
//	  - name: low
//	    range: {min: 1, max: 10000}
//	  - name: robot
//	    allow: ["1735/tcp", "5800-5810/udp"]
//	reserve: ["1735/tcp"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frc5024/portguard/internal/domain"
)

// PresetFMS2014 selects domain.NewFMS2014Policy
const PresetFMS2014 = "fms2014"

// PolicyFile is the YAML document
type PolicyFile struct {
	Policies []PolicySpec `yaml:"policies"`
	Reserve  []string     `yaml:"reserve"`
}

// PolicySpec describes one policy. Exactly one of Preset, Allow, Deny,
// Range or Protocols must be set.
type PolicySpec struct {
	Name      string              `yaml:"name"`
	Preset    string              `yaml:"preset,omitempty"`
	Allow     []string            `yaml:"allow,omitempty"`
	Deny      []string            `yaml:"deny,omitempty"`
	Range     *RangeSpec          `yaml:"range,omitempty"`
	Protocols map[string][]string `yaml:"protocols,omitempty"`
}

// RangeSpec is an inclusive port range
type RangeSpec struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// LoadPolicyFile reads and parses a policy file
func LoadPolicyFile(path string) (*PolicyFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicyFile(content)
}

// ParsePolicyFile parses YAML content into a PolicyFile
func ParsePolicyFile(content []byte) (*PolicyFile, error) {
	var file PolicyFile

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		// An empty document means no policies
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &file, nil
}

// ParsePolicySpec parses a single policy document, as sent over the wire
func ParsePolicySpec(content []byte) (*PolicySpec, error) {
	var spec PolicySpec

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &spec, nil
}

// Marshal serializes the file back to YAML
func (f *PolicyFile) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// BuildPolicies converts every spec into a domain.Policy, preserving order
func (f *PolicyFile) BuildPolicies() ([]domain.Policy, error) {
	policies := make([]domain.Policy, 0, len(f.Policies))
	seen := make(map[string]bool, len(f.Policies))

	for i, spec := range f.Policies {
		policy, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("policy %d (%q): %w", i, spec.Name, err)
		}
		if seen[policy.Name()] {
			return nil, fmt.Errorf("policy %d: %w", i, &domain.PolicyError{Name: policy.Name(), Err: domain.ErrDuplicatePolicyName})
		}
		seen[policy.Name()] = true
		policies = append(policies, policy)
	}

	return policies, nil
}

// ReservedPorts parses the reserve list
func (f *PolicyFile) ReservedPorts() ([]domain.Port, error) {
	out := make([]domain.Port, 0, len(f.Reserve))
	for _, s := range f.Reserve {
		p, err := domain.ParsePort(s)
		if err != nil {
			return nil, fmt.Errorf("reserve: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Build converts the entry into a domain.Policy
func (s PolicySpec) Build() (domain.Policy, error) {
	set := 0
	for _, present := range []bool{s.Preset != "", s.Allow != nil, s.Deny != nil, s.Range != nil, s.Protocols != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: exactly one of preset, allow, deny, range, protocols is required", domain.ErrInvalidPolicy)
	}

	switch {
	case s.Preset != "":
		return buildPreset(s)

	case s.Allow != nil:
		ports, err := parsePortList(s.Allow)
		if err != nil {
			return nil, err
		}
		return domain.NewAllowListPolicy(s.Name, ports...)

	case s.Deny != nil:
		ports, err := parsePortList(s.Deny)
		if err != nil {
			return nil, err
		}
		return domain.NewDenyListPolicy(s.Name, ports...)

	case s.Range != nil:
		return domain.NewRangePolicy(s.Name, s.Range.Min, s.Range.Max)

	default:
		ranges := make(map[domain.Protocol][]domain.PortRange, len(s.Protocols))
		for protoStr, entries := range s.Protocols {
			proto, err := domain.ParseProtocol(protoStr)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPolicy, err)
			}
			for _, e := range entries {
				r, err := parseRange(e)
				if err != nil {
					return nil, err
				}
				ranges[proto] = append(ranges[proto], r)
			}
		}
		return domain.NewProtocolRangePolicy(s.Name, ranges)
	}
}

func buildPreset(s PolicySpec) (domain.Policy, error) {
	switch strings.ToLower(s.Preset) {
	case PresetFMS2014:
		// The preset keeps its canonical name unless the file overrides it
		fms := domain.NewFMS2014Policy()
		if s.Name == "" || s.Name == fms.Name() {
			return fms, nil
		}
		return domain.NewProtocolRangePolicy(s.Name, domain.FMS2014Ranges())
	default:
		return nil, fmt.Errorf("%w: unknown preset %q", domain.ErrInvalidPolicy, s.Preset)
	}
}

// parsePortList expands entries like "80", "443/tcp" and "5800-5810/udp"
func parsePortList(entries []string) ([]domain.Port, error) {
	var out []domain.Port
	for _, e := range entries {
		spec, protoStr, slash := strings.Cut(strings.TrimSpace(e), "/")
		if !strings.Contains(spec, "-") {
			p, err := domain.ParsePort(e)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
			continue
		}

		proto, err := domain.ParseProtocol(protoStr)
		if err != nil || (slash && proto == domain.ProtocolAny) {
			return nil, fmt.Errorf("invalid port %q: %w", e, domain.ErrInvalidPort)
		}
		r, err := parseRange(spec)
		if err != nil {
			return nil, err
		}
		for n := r.Min; n <= r.Max; n++ {
			p, err := domain.NewPort(n, proto)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// parseRange parses "554" or "1180-1190"
func parseRange(s string) (domain.PortRange, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		hi = lo
	}

	min, err1 := strconv.Atoi(strings.TrimSpace(lo))
	max, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil {
		return domain.PortRange{}, fmt.Errorf("%w: bad range %q", domain.ErrInvalidPolicy, s)
	}

	r := domain.PortRange{Min: min, Max: max}
	if err := r.Validate(); err != nil {
		return domain.PortRange{}, err
	}
	return r, nil
}
