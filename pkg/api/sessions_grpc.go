package api

import (
	"context"

	"google.golang.org/grpc"
)

// SessionServiceName is the fully qualified gRPC service name.
const SessionServiceName = "lattice.sessions.SessionService"

// SessionServiceServer is the contract the session service implements.
type SessionServiceServer interface {
	GetOrCreateSession(context.Context, *GetOrCreateSessionRequest) (*Session, error)
	AddMessages(context.Context, *AddMessagesRequest) (*AddMessagesResponse, error)
	GetMessages(context.Context, *GetMessagesRequest) (*GetMessagesResponse, error)
	DeleteSession(context.Context, *DeleteSessionRequest) (*DeleteSessionResponse, error)
	SaveMemory(context.Context, *SaveMemoryRequest) (*SaveMemoryResponse, error)
	GetMemory(context.Context, *GetMemoryRequest) (*GetMemoryResponse, error)
	DeleteMemory(context.Context, *DeleteMemoryRequest) (*DeleteMemoryResponse, error)
	ClearUserMemory(context.Context, *ClearUserMemoryRequest) (*ClearUserMemoryResponse, error)
}

// RegisterSessionServiceServer wires an implementation into a gRPC server.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func unarySessionHandler[Req any, Resp any](method string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	full := "/" + SessionServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SessionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SessionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SessionServiceDesc is the dispatch table for the session service.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrCreateSession", Handler: unarySessionHandler("GetOrCreateSession", SessionServiceServer.GetOrCreateSession)},
		{MethodName: "AddMessages", Handler: unarySessionHandler("AddMessages", SessionServiceServer.AddMessages)},
		{MethodName: "GetMessages", Handler: unarySessionHandler("GetMessages", SessionServiceServer.GetMessages)},
		{MethodName: "DeleteSession", Handler: unarySessionHandler("DeleteSession", SessionServiceServer.DeleteSession)},
		{MethodName: "SaveMemory", Handler: unarySessionHandler("SaveMemory", SessionServiceServer.SaveMemory)},
		{MethodName: "GetMemory", Handler: unarySessionHandler("GetMemory", SessionServiceServer.GetMemory)},
		{MethodName: "DeleteMemory", Handler: unarySessionHandler("DeleteMemory", SessionServiceServer.DeleteMemory)},
		{MethodName: "ClearUserMemory", Handler: unarySessionHandler("ClearUserMemory", SessionServiceServer.ClearUserMemory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lattice/sessions",
}

// SessionServiceClient is the typed client side of the contract.
type SessionServiceClient interface {
	GetOrCreateSession(ctx context.Context, in *GetOrCreateSessionRequest, opts ...grpc.CallOption) (*Session, error)
	AddMessages(ctx context.Context, in *AddMessagesRequest, opts ...grpc.CallOption) (*AddMessagesResponse, error)
	GetMessages(ctx context.Context, in *GetMessagesRequest, opts ...grpc.CallOption) (*GetMessagesResponse, error)
	DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error)
	SaveMemory(ctx context.Context, in *SaveMemoryRequest, opts ...grpc.CallOption) (*SaveMemoryResponse, error)
	GetMemory(ctx context.Context, in *GetMemoryRequest, opts ...grpc.CallOption) (*GetMemoryResponse, error)
	DeleteMemory(ctx context.Context, in *DeleteMemoryRequest, opts ...grpc.CallOption) (*DeleteMemoryResponse, error)
	ClearUserMemory(ctx context.Context, in *ClearUserMemoryRequest, opts ...grpc.CallOption) (*ClearUserMemoryResponse, error)
}

type sessionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSessionServiceClient creates a client over an established connection.
func NewSessionServiceClient(cc grpc.ClientConnInterface) SessionServiceClient {
	return &sessionServiceClient{cc: cc}
}

func invokeSession[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+SessionServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionServiceClient) GetOrCreateSession(ctx context.Context, in *GetOrCreateSessionRequest, opts ...grpc.CallOption) (*Session, error) {
	return invokeSession[Session](ctx, c.cc, "GetOrCreateSession", in, opts)
}

func (c *sessionServiceClient) AddMessages(ctx context.Context, in *AddMessagesRequest, opts ...grpc.CallOption) (*AddMessagesResponse, error) {
	return invokeSession[AddMessagesResponse](ctx, c.cc, "AddMessages", in, opts)
}

func (c *sessionServiceClient) GetMessages(ctx context.Context, in *GetMessagesRequest, opts ...grpc.CallOption) (*GetMessagesResponse, error) {
	return invokeSession[GetMessagesResponse](ctx, c.cc, "GetMessages", in, opts)
}

func (c *sessionServiceClient) DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error) {
	return invokeSession[DeleteSessionResponse](ctx, c.cc, "DeleteSession", in, opts)
}

func (c *sessionServiceClient) SaveMemory(ctx context.Context, in *SaveMemoryRequest, opts ...grpc.CallOption) (*SaveMemoryResponse, error) {
	return invokeSession[SaveMemoryResponse](ctx, c.cc, "SaveMemory", in, opts)
}

func (c *sessionServiceClient) GetMemory(ctx context.Context, in *GetMemoryRequest, opts ...grpc.CallOption) (*GetMemoryResponse, error) {
	return invokeSession[GetMemoryResponse](ctx, c.cc, "GetMemory", in, opts)
}

func (c *sessionServiceClient) DeleteMemory(ctx context.Context, in *DeleteMemoryRequest, opts ...grpc.CallOption) (*DeleteMemoryResponse, error) {
	return invokeSession[DeleteMemoryResponse](ctx, c.cc, "DeleteMemory", in, opts)
}

func (c *sessionServiceClient) ClearUserMemory(ctx context.Context, in *ClearUserMemoryRequest, opts ...grpc.CallOption) (*ClearUserMemoryResponse, error) {
	return invokeSession[ClearUserMemoryResponse](ctx, c.cc, "ClearUserMemory", in, opts)
}
