package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// methodTypes lists request and response messages per method, in the
// order of PortServiceDesc.Methods
var methodTypes = []struct {
	name     string
	req, res proto.Message
}{
	{"Allocate", &structpb.Struct{}, &structpb.Struct{}},
	{"Release", &structpb.Struct{}, &emptypb.Empty{}},
	{"IsAllocated", &wrapperspb.StringValue{}, &wrapperspb.BoolValue{}},
	{"ListAllocated", &emptypb.Empty{}, &structpb.Struct{}},
	{"ListPolicies", &emptypb.Empty{}, &structpb.Struct{}},
	{"RegisterPolicy", &wrapperspb.StringValue{}, &structpb.Struct{}},
	{"UnregisterPolicy", &wrapperspb.StringValue{}, &emptypb.Empty{}},
	{"History", &structpb.Struct{}, &structpb.Struct{}},
	{"Stats", &emptypb.Empty{}, &structpb.Struct{}},
}

// The service file is registered with the global registry so server
// reflection can describe PortService without generated code.
func init() {
	fd, err := protodesc.NewFile(serviceFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("portguard: bad service descriptor: %v", err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("portguard: failed to register %s: %v", protoFile, err))
	}
}

// ServiceDescriptor returns the registered PortService descriptor
func ServiceDescriptor() (protoreflect.ServiceDescriptor, error) {
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(ServiceName)
	if err != nil {
		return nil, err
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is a %T, not a service", ServiceName, d)
	}
	return sd, nil
}

func serviceFileProto() *descriptorpb.FileDescriptorProto {
	deps := map[string]bool{}
	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(methodTypes))
	for _, m := range methodTypes {
		req, res := m.req.ProtoReflect().Descriptor(), m.res.ProtoReflect().Descriptor()
		deps[req.ParentFile().Path()] = true
		deps[res.ParentFile().Path()] = true

		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.name),
			InputType:  proto.String("." + string(req.FullName())),
			OutputType: proto.String("." + string(res.FullName())),
		})
	}

	// Fixed order keeps the descriptor deterministic
	var dependency []string
	for _, path := range []string{
		"google/protobuf/empty.proto",
		"google/protobuf/struct.proto",
		"google/protobuf/wrappers.proto",
	} {
		if deps[path] {
			dependency = append(dependency, path)
		}
	}

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(protoFile),
		Package:    proto.String("portguard.v1"),
		Dependency: dependency,
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("PortService"),
			Method: methods,
		}},
	}
}
