package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPort indicates the port number is outside 1-65535 or the protocol is unknown
	ErrInvalidPort = errors.New("invalid port")

	// ErrPortInUse indicates the port is already held by another caller
	ErrPortInUse = errors.New("already allocated")

	// ErrPortRejected indicates a firewall policy vetoed the port
	ErrPortRejected = errors.New("rejected by firewall policy")

	// ErrPortNotAllocated indicates release of a port nobody holds
	ErrPortNotAllocated = errors.New("not allocated")

	// ErrDuplicatePolicyName indicates a policy with the same name is registered
	ErrDuplicatePolicyName = errors.New("duplicate firewall policy name")

	// ErrPolicyNotFound indicates no policy is registered under the name
	ErrPolicyNotFound = errors.New("firewall policy not found")

	// ErrInvalidPolicy indicates a policy was built from bad parameters
	ErrInvalidPolicy = errors.New("invalid firewall policy")
)

// PortError ties one of the port sentinels to the offending port.
// Number is kept as an int so out-of-range values can still be reported.
type PortError struct {
	Number   int
	Protocol Protocol
	Err      error
}

func portError(p Port, err error) *PortError {
	return &PortError{Number: p.Number(), Protocol: p.Protocol(), Err: err}
}

func (e *PortError) Error() string {
	return formatPort(e.Number, e.Protocol) + ": " + e.Err.Error()
}

func (e *PortError) Unwrap() error {
	return e.Err
}

// RejectedError names the first policy that vetoed an allocation
type RejectedError struct {
	Port   Port
	Policy string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Port, ErrPortRejected, e.Policy)
}

func (e *RejectedError) Unwrap() error {
	return ErrPortRejected
}

// PolicyError ties a policy-registration sentinel to the policy name
type PolicyError struct {
	Name string
	Err  error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Name)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}

// RejectingPolicy returns the policy name carried by a rejection error
func RejectingPolicy(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Policy, true
	}
	return "", false
}
