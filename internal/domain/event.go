package domain

import (
	"errors"
	"time"
)

// EventAction says what happened to a port
type EventAction string

const (
	ActionAllocate EventAction = "allocate"
	ActionRelease  EventAction = "release"
	ActionConflict EventAction = "conflict" // allocate refused, port in use
	ActionReject   EventAction = "reject"   // allocate refused by a policy
)

// AllocationEvent is one entry of the allocation journal
type AllocationEvent struct {
	ID        int64
	Port      Port
	Action    EventAction
	Policy    string // rejecting policy, only for ActionReject
	Holder    string
	Timestamp time.Time
}

// NewAllocationEvent creates a journal entry stamped with the current time
func NewAllocationEvent(port Port, action EventAction, holder string) *AllocationEvent {
	return &AllocationEvent{
		Port:      port,
		Action:    action,
		Holder:    holder,
		Timestamp: time.Now(),
	}
}

// Refused reports whether the event records a failed allocation
func (e *AllocationEvent) Refused() bool {
	return e.Action == ActionConflict || e.Action == ActionReject
}

// EventForAllocation maps the outcome of an allocate call to a journal entry.
// Invalid ports never reach the journal, so nil is returned for them.
func EventForAllocation(port Port, holder string, err error) *AllocationEvent {
	switch {
	case err == nil:
		return NewAllocationEvent(port, ActionAllocate, holder)
	case errors.Is(err, ErrPortInUse):
		return NewAllocationEvent(port, ActionConflict, holder)
	}

	if policy, ok := RejectingPolicy(err); ok {
		ev := NewAllocationEvent(port, ActionReject, holder)
		ev.Policy = policy
		return ev
	}
	return nil
}
