package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "portguard.v1.PortService"

const protoFile = "portguard/v1/port_service.proto"

// PortServiceServer is the server API for PortService.
// Messages are protobuf well-known types so no code generation is needed.
type PortServiceServer interface {
	// Allocate takes {port: "80/tcp", holder: "vision"}
	Allocate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

	// Release takes {port: "80/tcp", holder: "vision"}
	Release(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)

	// IsAllocated takes a port key
	IsAllocated(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)

	// ListAllocated returns {allocations: [{port, display, holder}]}
	ListAllocated(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)

	// ListPolicies returns {policies: [{name, kind, rule}]} in registration order
	ListPolicies(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)

	// RegisterPolicy takes one policy as a YAML document
	RegisterPolicy(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)

	// UnregisterPolicy takes a policy name
	UnregisterPolicy(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)

	// History takes {start, end} as Unix seconds and returns {events: [...]}
	History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

	// Stats returns {allowed, conflicts, rejected, by_policy: {name: n}}
	Stats(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterPortServiceServer registers srv on s
func RegisterPortServiceServer(s grpc.ServiceRegistrar, srv PortServiceServer) {
	s.RegisterService(&PortServiceDesc, srv)
}

// PortServiceDesc describes PortService for grpc.Server
var PortServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PortServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Allocate", newStruct, func(s PortServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.Allocate(ctx, in)
		}),
		unary("Release", newStruct, func(s PortServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.Release(ctx, in)
		}),
		unary("IsAllocated", newString, func(s PortServiceServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return s.IsAllocated(ctx, in)
		}),
		unary("ListAllocated", newEmpty, func(s PortServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.ListAllocated(ctx, in)
		}),
		unary("ListPolicies", newEmpty, func(s PortServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.ListPolicies(ctx, in)
		}),
		unary("RegisterPolicy", newString, func(s PortServiceServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return s.RegisterPolicy(ctx, in)
		}),
		unary("UnregisterPolicy", newString, func(s PortServiceServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return s.UnregisterPolicy(ctx, in)
		}),
		unary("History", newStruct, func(s PortServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.History(ctx, in)
		}),
		unary("Stats", newEmpty, func(s PortServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Stats(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

func newStruct() *structpb.Struct       { return new(structpb.Struct) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor protoc-gen-go-grpc would generate
func unary[Req proto.Message](
	method string,
	newReq func() Req,
	call func(PortServiceServer, context.Context, Req) (proto.Message, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(PortServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(Req))
			})
		},
	}
}
