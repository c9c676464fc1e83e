package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "posesilhouette.OverlayService"

// OverlayServiceServer is served without generated stubs; requests and
// replies are protobuf well-known types.
type OverlayServiceServer interface {
	GetOverlay(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

var OverlayService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OverlayServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetOverlay",
			Handler: unaryHandler("GetOverlay", func(s OverlayServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.GetOverlay(ctx, in)
			}),
		},
		{
			MethodName: "GetStatus",
			Handler: unaryHandler("GetStatus", func(s OverlayServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.GetStatus(ctx, in)
			}),
		},
		{
			MethodName: "Shutdown",
			Handler: unaryHandler("Shutdown", func(s OverlayServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Shutdown(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "posesilhouette/overlay.proto",
}

func RegisterOverlayServiceServer(s grpc.ServiceRegistrar, srv OverlayServiceServer) {
	s.RegisterService(&OverlayService_ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call func(OverlayServiceServer, context.Context, *emptypb.Empty) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OverlayServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OverlayServiceServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}
