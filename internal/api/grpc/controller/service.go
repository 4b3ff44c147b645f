package controller

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "antctrl.v1.ControllerService"
	// ExecuteFullMethod is the full method name of Execute.
	ExecuteFullMethod = "/" + ServiceName + "/Execute"
	// GetStatusFullMethod is the full method name of GetStatus.
	GetStatusFullMethod = "/" + ServiceName + "/GetStatus"
)

// ControllerServer is the server API of ControllerService.
type ControllerServer interface {
	Execute(ctx context.Context, command *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(ctx context.Context, request *emptypb.Empty) (*structpb.Struct, error)
}

// ControllerClient is the client API of ControllerService.
type ControllerClient interface {
	Execute(ctx context.Context, command *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetStatus(ctx context.Context, request *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ServiceDesc describes ControllerService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "antctrl/v1/controller.proto",
}

// RegisterControllerServer registers srv on the registrar.
func RegisterControllerServer(registrar grpc.ServiceRegistrar, srv ControllerServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// controllerClient invokes ControllerService over a connection.
type controllerClient struct {
	// cc is the client connection.
	cc grpc.ClientConnInterface
}

// NewControllerClient returns a client bound to the connection.
func NewControllerClient(cc grpc.ClientConnInterface) ControllerClient {
	return &controllerClient{cc: cc}
}

// Execute invokes ControllerService.Execute.
func (c *controllerClient) Execute(
	ctx context.Context,
	command *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteFullMethod, command, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetStatus invokes ControllerService.GetStatus.
func (c *controllerClient) GetStatus(
	ctx context.Context,
	request *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusFullMethod, request, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// executeHandler decodes and routes an Execute call.
func executeHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodDesc.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControllerServer).Execute(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).Execute(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

// getStatusHandler decodes and routes a GetStatus call.
func getStatusHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodDesc.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControllerServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStatusFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}
