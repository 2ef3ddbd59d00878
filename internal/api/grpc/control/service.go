package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "schedulewatch.v1.Control"
	// PostMethod is the full method name of Control.Post.
	PostMethod = "/" + ServiceName + "/Post"
)

// ControlServer is the server API of the control service.
type ControlServer interface {
	Post(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Register adds the control service to s.
func Register(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&serviceDesc, srv)
}

//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Post",
			Handler:    postHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "schedulewatch/v1/control.proto",
}

func postHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodDesc.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControlServer).Post(ctx, in) //nolint:forcetypeassert // Guaranteed by RegisterService.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PostMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Post(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Decoded above.
	}

	return interceptor(ctx, in, info, handler)
}
