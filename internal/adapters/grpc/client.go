package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frc5024/portguard/internal/domain"
)

// Allocation is a held port as reported by the server
type Allocation struct {
	Port   domain.Port
	Holder string
}

// PolicyInfo describes a registered policy
type PolicyInfo struct {
	Name string
	Kind domain.PolicyKind
	Rule string
}

// Client is a typed PortService client
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an open connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Allocate asks the server to claim port for holder
func (c *Client) Allocate(ctx context.Context, port domain.Port, holder string, opts ...grpc.CallOption) (Allocation, error) {
	in, err := structpb.NewStruct(map[string]any{"port": port.Key(), "holder": holder})
	if err != nil {
		return Allocation{}, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Allocate"), in, out, opts...); err != nil {
		return Allocation{}, err
	}
	return allocationFromStruct(out)
}

// Release asks the server to free port
func (c *Client) Release(ctx context.Context, port domain.Port, holder string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]any{"port": port.Key(), "holder": holder})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, fullMethod("Release"), in, new(emptypb.Empty), opts...)
}

// IsAllocated reports whether port is held on the server
func (c *Client) IsAllocated(ctx context.Context, port domain.Port, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, fullMethod("IsAllocated"), wrapperspb.String(port.Key()), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// ListAllocated returns every held port
func (c *Client) ListAllocated(ctx context.Context, opts ...grpc.CallOption) ([]Allocation, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("ListAllocated"), new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	list := out.GetFields()["allocations"].GetListValue().GetValues()
	allocations := make([]Allocation, 0, len(list))
	for _, v := range list {
		a, err := allocationFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, nil
}

// ListPolicies returns the registered policies in evaluation order
func (c *Client) ListPolicies(ctx context.Context, opts ...grpc.CallOption) ([]PolicyInfo, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("ListPolicies"), new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	list := out.GetFields()["policies"].GetListValue().GetValues()
	policies := make([]PolicyInfo, 0, len(list))
	for _, v := range list {
		policies = append(policies, policyFromStruct(v.GetStructValue()))
	}
	return policies, nil
}

// RegisterPolicy sends one policy as a YAML document
func (c *Client) RegisterPolicy(ctx context.Context, document string, opts ...grpc.CallOption) (PolicyInfo, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("RegisterPolicy"), wrapperspb.String(document), out, opts...); err != nil {
		return PolicyInfo{}, err
	}
	return policyFromStruct(out), nil
}

// UnregisterPolicy removes a policy by name
func (c *Client) UnregisterPolicy(ctx context.Context, name string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("UnregisterPolicy"), wrapperspb.String(name), new(emptypb.Empty), opts...)
}

// History returns journal entries in [start, end), at second resolution
func (c *Client) History(ctx context.Context, start, end time.Time, opts ...grpc.CallOption) ([]*domain.AllocationEvent, error) {
	in, err := structpb.NewStruct(map[string]any{
		"start": float64(start.Unix()),
		"end":   float64(end.Unix()),
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("History"), in, out, opts...); err != nil {
		return nil, err
	}

	list := out.GetFields()["events"].GetListValue().GetValues()
	events := make([]*domain.AllocationEvent, 0, len(list))
	for _, v := range list {
		s := v.GetStructValue()
		port, err := domain.ParsePort(stringField(s, "port"))
		if err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, &domain.AllocationEvent{
			ID:        int64(numberField(s, "id")),
			Port:      port,
			Action:    domain.EventAction(stringField(s, "action")),
			Policy:    stringField(s, "policy"),
			Holder:    stringField(s, "holder"),
			Timestamp: time.Unix(int64(numberField(s, "timestamp")), 0),
		})
	}
	return events, nil
}

// Stats returns the server's cumulative admission counters
func (c *Client) Stats(ctx context.Context, opts ...grpc.CallOption) (domain.StatsTotals, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Stats"), new(emptypb.Empty), out, opts...); err != nil {
		return domain.StatsTotals{}, err
	}

	totals := domain.StatsTotals{
		Allowed:   int64(numberField(out, "allowed")),
		Conflicts: int64(numberField(out, "conflicts")),
		Rejected:  int64(numberField(out, "rejected")),
		ByPolicy:  map[string]int64{},
	}
	for name, v := range out.GetFields()["by_policy"].GetStructValue().GetFields() {
		totals.ByPolicy[name] = int64(v.GetNumberValue())
	}
	return totals, nil
}

func allocationFromStruct(s *structpb.Struct) (Allocation, error) {
	port, err := domain.ParsePort(stringField(s, "port"))
	if err != nil {
		return Allocation{}, fmt.Errorf("failed to decode allocation: %w", err)
	}
	return Allocation{Port: port, Holder: stringField(s, "holder")}, nil
}

func policyFromStruct(s *structpb.Struct) PolicyInfo {
	return PolicyInfo{
		Name: stringField(s, "name"),
		Kind: domain.PolicyKind(stringField(s, "kind")),
		Rule: stringField(s, "rule"),
	}
}
