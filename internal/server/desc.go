package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC name of the import service.
const ServiceName = "yape.v1.ImportService"

// Method names of ImportService.
const (
	MethodValidateUpload     = "ValidateUpload"
	MethodConfirmUpload      = "ConfirmUpload"
	MethodListTransactions   = "ListTransactions"
	MethodGetTransaction     = "GetTransaction"
	MethodGetStatistics      = "GetStatistics"
	MethodListUploadHistory  = "ListUploadHistory"
	MethodExportTransactions = "ExportTransactions"
)

// ImportServiceServer is the server API for yape.v1.ImportService. Requests
// and responses are JSON-shaped google.protobuf.Struct messages.
type ImportServiceServer interface {
	ValidateUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUploadHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ImportServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ImportServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ImportServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ImportServiceDesc is the grpc.ServiceDesc for yape.v1.ImportService.
var ImportServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ImportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodHandler(MethodValidateUpload, ImportServiceServer.ValidateUpload),
		methodHandler(MethodConfirmUpload, ImportServiceServer.ConfirmUpload),
		methodHandler(MethodListTransactions, ImportServiceServer.ListTransactions),
		methodHandler(MethodGetTransaction, ImportServiceServer.GetTransaction),
		methodHandler(MethodGetStatistics, ImportServiceServer.GetStatistics),
		methodHandler(MethodListUploadHistory, ImportServiceServer.ListUploadHistory),
		methodHandler(MethodExportTransactions, ImportServiceServer.ExportTransactions),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterImportServiceServer registers srv on s.
func RegisterImportServiceServer(s grpc.ServiceRegistrar, srv ImportServiceServer) {
	s.RegisterService(&ImportServiceDesc, srv)
}

// ImportServiceClient calls yape.v1.ImportService.
type ImportServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewImportServiceClient wraps cc.
func NewImportServiceClient(cc grpc.ClientConnInterface) *ImportServiceClient {
	return &ImportServiceClient{cc: cc}
}

// Call invokes method with req and returns the response message.
func (c *ImportServiceClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
