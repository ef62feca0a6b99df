package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "grantguru.v1.IngestService"

// Full method names, as dialled by clients.
const (
	MethodTriggerIngest = "/" + ServiceName + "/TriggerIngest"
	MethodGrantCount    = "/" + ServiceName + "/GrantCount"
	MethodPurgeArchived = "/" + ServiceName + "/PurgeArchived"
)

// IngestServer is the server API for the IngestService. Messages are
// google.protobuf.Struct so the service needs no generated code.
type IngestServer interface {
	TriggerIngest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GrantCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PurgeArchived(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterIngestServer registers srv on s.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&serviceDesc, srv)
}

type unaryMethod func(IngestServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts an IngestServer method to grpc.MethodHandler.
func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IngestServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(IngestServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TriggerIngest", Handler: unaryHandler(MethodTriggerIngest, IngestServer.TriggerIngest)},
		{MethodName: "GrantCount", Handler: unaryHandler(MethodGrantCount, IngestServer.GrantCount)},
		{MethodName: "PurgeArchived", Handler: unaryHandler(MethodPurgeArchived, IngestServer.PurgeArchived)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grantguru/v1/ingest.proto",
}
