package domain

import (
	"testing"
)

func TestEventForAllocation(t *testing.T) {
	r := NewPortRegistry()
	deny, _ := NewDenyListPolicy("no-ssh", MustPort(22, ProtocolAny))
	if err := r.RegisterPolicy(deny); err != nil {
		t.Fatalf("RegisterPolicy failed: %v", err)
	}

	p := MustPort(5800, ProtocolUDP)
	_, err := r.Allocate(p)
	if ev := EventForAllocation(p, "robot", err); ev == nil || ev.Action != ActionAllocate {
		t.Errorf("expected allocate event, got %+v", ev)
	}

	_, err = r.Allocate(p)
	ev := EventForAllocation(p, "robot", err)
	if ev == nil || ev.Action != ActionConflict || !ev.Refused() {
		t.Errorf("expected refused conflict event, got %+v", ev)
	}

	ssh := MustPort(22, ProtocolTCP)
	_, err = r.Allocate(ssh)
	ev = EventForAllocation(ssh, "robot", err)
	if ev == nil || ev.Action != ActionReject || ev.Policy != "no-ssh" {
		t.Errorf("expected reject event naming no-ssh, got %+v", ev)
	}

	if ev := EventForAllocation(Port{}, "robot", &PortError{Err: ErrInvalidPort}); ev != nil {
		t.Errorf("expected no event for invalid port, got %+v", ev)
	}
}
