package domain

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// PortRegistry grants exclusive, policy-checked claims on ports.
//
// The admission decision (exclusivity check, policy evaluation, insertion)
// runs under one mutex, and policy registration shares that mutex, so a
// policy can never be removed while an allocation is evaluating it.
// Nothing under the lock blocks on I/O.
type PortRegistry struct {
	mu        sync.Mutex
	allocated map[Port]string // port -> holder
	policies  []Policy
	lastStamp time.Time
}

// NewPortRegistry creates an empty registry with no policies
func NewPortRegistry() *PortRegistry {
	return &PortRegistry{
		allocated: make(map[Port]string),
	}
}

// RegisterPolicy appends a policy. Names must be unique.
func (r *PortRegistry) RegisterPolicy(policy Policy) error {
	if isNilPolicy(policy) {
		return &PolicyError{Err: fmt.Errorf("%w: nil policy", ErrInvalidPolicy)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(policy.Name()) >= 0 {
		return &PolicyError{Name: policy.Name(), Err: ErrDuplicatePolicyName}
	}

	r.policies = append(r.policies, policy)
	return nil
}

// UnregisterPolicy removes a policy by name.
// Removing an unknown name is an error, not a no-op.
func (r *PortRegistry) UnregisterPolicy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(name)
	if i < 0 {
		return &PolicyError{Name: name, Err: ErrPolicyNotFound}
	}

	r.policies = slices.Delete(r.policies, i, i+1)
	return nil
}

// Allocate claims port on behalf of an anonymous caller
func (r *PortRegistry) Allocate(port Port) (Port, error) {
	return r.AllocateFor(port, "")
}

// AllocateFor claims port and records holder for diagnostics.
// The returned Port is the caller's token for opening the transport.
func (r *PortRegistry) AllocateFor(port Port, holder string) (Port, error) {
	granted, _, err := r.AllocateStamped(port, holder)
	return granted, err
}

// AllocateStamped is AllocateFor that also returns when the decision was
// made. Stamps are taken under the lock and strictly increase, so they
// order decisions on the same registry. Invalid ports get a zero stamp.
func (r *PortRegistry) AllocateStamped(port Port, holder string) (Port, time.Time, error) {
	if port.IsZero() {
		return Port{}, time.Time{}, portError(port, ErrInvalidPort)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.stamp()
	if err := r.admit(port); err != nil {
		return Port{}, at, err
	}

	r.allocated[port] = holder
	return port, at, nil
}

// Check runs the admission decision without claiming the port
func (r *PortRegistry) Check(port Port) error {
	if port.IsZero() {
		return portError(port, ErrInvalidPort)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.admit(port)
}

// admit must be called with r.mu held
func (r *PortRegistry) admit(port Port) error {
	// Exclusivity first: cheap and local
	if _, held := r.allocated[port]; held {
		return portError(port, ErrPortInUse)
	}

	// Registration order decides which policy is reported, never the outcome
	for _, policy := range r.policies {
		if !policy.IsValidPort(port) {
			return &RejectedError{Port: port, Policy: policy.Name()}
		}
	}

	return nil
}

// Release frees a held port. Releasing a port that is not held is a
// caller bookkeeping bug and reported as ErrPortNotAllocated.
func (r *PortRegistry) Release(port Port) error {
	_, err := r.ReleaseStamped(port)
	return err
}

// ReleaseStamped is Release that also returns when the port was freed.
// Failed releases get a zero stamp.
func (r *PortRegistry) ReleaseStamped(port Port) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.allocated[port]; !held {
		return time.Time{}, portError(port, ErrPortNotAllocated)
	}

	delete(r.allocated, port)
	return r.stamp(), nil
}

// IsAllocated reports whether port is currently held
func (r *PortRegistry) IsAllocated(port Port) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, held := r.allocated[port]
	return held
}

// Holder returns who holds port, if anyone
func (r *PortRegistry) Holder(port Port) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	holder, held := r.allocated[port]
	return holder, held
}

// Allocated returns the held ports sorted by number then protocol
func (r *PortRegistry) Allocated() []Port {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Port, 0, len(r.allocated))
	for p := range r.allocated {
		out = append(out, p)
	}
	slices.SortFunc(out, ComparePorts)
	return out
}

// Len returns the number of held ports
func (r *PortRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.allocated)
}

// Policies returns the registered policies in registration order
func (r *PortRegistry) Policies() []Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.policies)
}

// Close tears the registry down, dropping every allocation and policy
func (r *PortRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.allocated)
	r.policies = nil
}

func (r *PortRegistry) indexOf(name string) int {
	return slices.IndexFunc(r.policies, func(p Policy) bool {
		return p.Name() == name
	})
}

// stamp must be called with r.mu held. Wall-clock only (no monotonic
// reading) so stored journal entries sort the same way.
func (r *PortRegistry) stamp() time.Time {
	now := time.Now().Round(0)
	if !now.After(r.lastStamp) {
		now = r.lastStamp.Add(time.Nanosecond)
	}
	r.lastStamp = now
	return now
}

// isNilPolicy catches both a nil interface and a typed nil variant
func isNilPolicy(p Policy) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *AllowListPolicy:
		return v == nil
	case *DenyListPolicy:
		return v == nil
	case *RangePolicy:
		return v == nil
	case *ProtocolRangePolicy:
		return v == nil
	}
	return false
}
