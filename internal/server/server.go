package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer builds a server exposing the import service together with
// the standard health service. Reflection is not registered: the import
// service exchanges structpb.Struct messages and has no .proto descriptor.
func NewGRPCServer(svc ImportServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger)),
		// base64 inflates uploads by a third
		grpc.MaxRecvMsgSize(MaxUploadBytes * 2),
		grpc.MaxSendMsgSize(64 << 20),
	}, opts...)
	s := grpc.NewServer(opts...)

	RegisterImportServiceServer(s, svc)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return s, healthServer
}
