package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frc5024/portguard/internal/config"
	"github.com/frc5024/portguard/internal/domain"
	"github.com/frc5024/portguard/internal/ports"
)

// PortServiceHandler implements the gRPC PortService
type PortServiceHandler struct {
	allocator *ports.Allocator
}

// NewPortServiceHandler creates a new gRPC handler
func NewPortServiceHandler(allocator *ports.Allocator) *PortServiceHandler {
	return &PortServiceHandler{
		allocator: allocator,
	}
}

// Allocate claims a port for the caller
func (h *PortServiceHandler) Allocate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, holder := stringField(req, "port"), stringField(req, "holder")
	log.Info().Str("port", key).Str("holder", holder).Msg("Allocate called")

	port, err := domain.ParsePort(key)
	if err != nil {
		return nil, toStatus(err)
	}

	granted, err := h.allocator.Allocate(ctx, port, holder)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(allocationToMap(granted, holder))
}

// Release frees a port held by the caller
func (h *PortServiceHandler) Release(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	key, holder := stringField(req, "port"), stringField(req, "holder")
	log.Info().Str("port", key).Str("holder", holder).Msg("Release called")

	port, err := domain.ParsePort(key)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := h.allocator.Release(ctx, port, holder); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

// IsAllocated reports whether a port is held
func (h *PortServiceHandler) IsAllocated(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	port, err := domain.ParsePort(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Bool(h.allocator.IsAllocated(port)), nil
}

// ListAllocated returns every held port, sorted
func (h *PortServiceHandler) ListAllocated(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	registry := h.allocator.Registry()

	allocations := []any{}
	for _, p := range registry.Allocated() {
		holder, held := registry.Holder(p)
		if !held {
			// released between the two calls
			continue
		}
		allocations = append(allocations, allocationToMap(p, holder))
	}

	return structpb.NewStruct(map[string]any{"allocations": allocations})
}

// ListPolicies returns the registered policies in evaluation order
func (h *PortServiceHandler) ListPolicies(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	policies := []any{}
	for _, p := range h.allocator.Registry().Policies() {
		policies = append(policies, policyToMap(p))
	}

	return structpb.NewStruct(map[string]any{"policies": policies})
}

// RegisterPolicy adds a policy described by a YAML document
func (h *PortServiceHandler) RegisterPolicy(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	spec, err := config.ParsePolicySpec([]byte(req.GetValue()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	policy, err := spec.Build()
	if err != nil {
		return nil, toStatus(err)
	}

	log.Info().Str("policy", policy.Name()).Str("rule", policy.String()).Msg("RegisterPolicy called")

	if err := h.allocator.Registry().RegisterPolicy(policy); err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(policyToMap(policy))
}

// UnregisterPolicy removes a policy by name
func (h *PortServiceHandler) UnregisterPolicy(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	log.Info().Str("policy", req.GetValue()).Msg("UnregisterPolicy called")

	if err := h.allocator.Registry().UnregisterPolicy(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

// History returns journal entries in [start, end)
func (h *PortServiceHandler) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Unix(int64(numberField(req, "start")), 0)
	end := time.Unix(int64(numberField(req, "end")), 0)

	log.Info().
		Int64("start", start.Unix()).
		Int64("end", end.Unix()).
		Msg("History called")

	if !start.Before(end) {
		return nil, status.Error(codes.InvalidArgument, "start must be before end")
	}

	events, err := h.allocator.History(ctx, start, end)
	if err != nil {
		log.Error().Err(err).Msg("failed to get allocation events")
		return nil, status.Error(codes.Internal, "failed to get allocation events")
	}

	out := make([]any, len(events))
	for i, ev := range events {
		out[i] = eventToMap(ev)
	}

	return structpb.NewStruct(map[string]any{"events": out})
}

// Stats returns the cumulative admission counters
func (h *PortServiceHandler) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	totals, err := h.allocator.Stats(ctx)
	if errors.Is(err, ports.ErrStatsDisabled) {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to read admission stats")
		return nil, status.Error(codes.Internal, "failed to read admission stats")
	}

	byPolicy := make(map[string]any, len(totals.ByPolicy))
	for name, n := range totals.ByPolicy {
		byPolicy[name] = float64(n)
	}

	return structpb.NewStruct(map[string]any{
		"allowed":   float64(totals.Allowed),
		"conflicts": float64(totals.Conflicts),
		"rejected":  float64(totals.Rejected),
		"by_policy": byPolicy,
	})
}

// toStatus maps domain errors to gRPC status codes.
// The message keeps the port and policy names for diagnosis.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrInvalidPort), errors.Is(err, domain.ErrInvalidPolicy):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrPortInUse), errors.Is(err, domain.ErrDuplicatePolicyName):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrPortRejected):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrPortNotAllocated):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrPolicyNotFound):
		code = codes.NotFound
	}
	return status.Error(code, err.Error())
}

func allocationToMap(p domain.Port, holder string) map[string]any {
	return map[string]any{
		"port":    p.Key(),
		"display": p.String(),
		"holder":  holder,
	}
}

func policyToMap(p domain.Policy) map[string]any {
	return map[string]any{
		"name": p.Name(),
		"kind": string(p.Kind()),
		"rule": p.String(),
	}
}

func eventToMap(ev *domain.AllocationEvent) map[string]any {
	return map[string]any{
		"id":        float64(ev.ID),
		"port":      ev.Port.Key(),
		"action":    string(ev.Action),
		"policy":    ev.Policy,
		"holder":    ev.Holder,
		"timestamp": float64(ev.Timestamp.Unix()),
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}
