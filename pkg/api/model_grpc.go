package api

import (
	"context"

	"google.golang.org/grpc"
)

// ModelServiceName is the fully qualified gRPC service name.
const ModelServiceName = "lattice.models.ModelService"

// ModelServiceServer is the contract the model service implements.
type ModelServiceServer interface {
	Chat(context.Context, *ChatRequest) (*ChatResponse, error)
	ChatStream(*ChatRequest, ModelServiceChatStreamServer) error
	ListModels(context.Context, *ListModelsRequest) (*ListModelsResponse, error)
	GetModelCapabilities(context.Context, *GetModelCapabilitiesRequest) (*ModelInfo, error)
	RegisterPrompt(context.Context, *RegisterPromptRequest) (*Prompt, error)
	GetPrompt(context.Context, *GetPromptRequest) (*Prompt, error)
	ListPrompts(context.Context, *ListPromptsRequest) (*ListPromptsResponse, error)
	RegisterModel(context.Context, *RegisterModelRequest) (*RegisteredModel, error)
	ListRegisteredModels(context.Context, *ListRegisteredModelsRequest) (*ListRegisteredModelsResponse, error)
	GetModelStatus(context.Context, *GetModelStatusRequest) (*GetModelStatusResponse, error)
}

// ModelServiceChatStreamServer is the send side of a ChatStream call.
type ModelServiceChatStreamServer interface {
	Send(*ChatChunk) error
	grpc.ServerStream
}

type modelServiceChatStreamServer struct {
	grpc.ServerStream
}

func (s *modelServiceChatStreamServer) Send(c *ChatChunk) error {
	return s.ServerStream.SendMsg(c)
}

// RegisterModelServiceServer wires an implementation into a gRPC server.
func RegisterModelServiceServer(s grpc.ServiceRegistrar, srv ModelServiceServer) {
	s.RegisterService(&ModelServiceDesc, srv)
}

func unaryModelHandler[Req any, Resp any](method string, call func(ModelServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	full := "/" + ModelServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ModelServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ModelServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func chatStreamHandler(srv any, stream grpc.ServerStream) error {
	in := new(ChatRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ModelServiceServer).ChatStream(in, &modelServiceChatStreamServer{stream})
}

// ModelServiceDesc is the dispatch table for the model service: every
// method is declared here once, and both the server registration and the
// gateway's generic forwarding are derived from it.
var ModelServiceDesc = grpc.ServiceDesc{
	ServiceName: ModelServiceName,
	HandlerType: (*ModelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Chat", Handler: unaryModelHandler("Chat", ModelServiceServer.Chat)},
		{MethodName: "ListModels", Handler: unaryModelHandler("ListModels", ModelServiceServer.ListModels)},
		{MethodName: "GetModelCapabilities", Handler: unaryModelHandler("GetModelCapabilities", ModelServiceServer.GetModelCapabilities)},
		{MethodName: "RegisterPrompt", Handler: unaryModelHandler("RegisterPrompt", ModelServiceServer.RegisterPrompt)},
		{MethodName: "GetPrompt", Handler: unaryModelHandler("GetPrompt", ModelServiceServer.GetPrompt)},
		{MethodName: "ListPrompts", Handler: unaryModelHandler("ListPrompts", ModelServiceServer.ListPrompts)},
		{MethodName: "RegisterModel", Handler: unaryModelHandler("RegisterModel", ModelServiceServer.RegisterModel)},
		{MethodName: "ListRegisteredModels", Handler: unaryModelHandler("ListRegisteredModels", ModelServiceServer.ListRegisteredModels)},
		{MethodName: "GetModelStatus", Handler: unaryModelHandler("GetModelStatus", ModelServiceServer.GetModelStatus)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ChatStream", Handler: chatStreamHandler, ServerStreams: true},
	},
	Metadata: "lattice/models",
}

// ModelServiceClient is the typed client side of the contract.
type ModelServiceClient interface {
	Chat(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (*ChatResponse, error)
	ChatStream(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (ModelServiceChatStreamClient, error)
	ListModels(ctx context.Context, in *ListModelsRequest, opts ...grpc.CallOption) (*ListModelsResponse, error)
	GetModelCapabilities(ctx context.Context, in *GetModelCapabilitiesRequest, opts ...grpc.CallOption) (*ModelInfo, error)
	RegisterPrompt(ctx context.Context, in *RegisterPromptRequest, opts ...grpc.CallOption) (*Prompt, error)
	GetPrompt(ctx context.Context, in *GetPromptRequest, opts ...grpc.CallOption) (*Prompt, error)
	ListPrompts(ctx context.Context, in *ListPromptsRequest, opts ...grpc.CallOption) (*ListPromptsResponse, error)
	RegisterModel(ctx context.Context, in *RegisterModelRequest, opts ...grpc.CallOption) (*RegisteredModel, error)
	ListRegisteredModels(ctx context.Context, in *ListRegisteredModelsRequest, opts ...grpc.CallOption) (*ListRegisteredModelsResponse, error)
	GetModelStatus(ctx context.Context, in *GetModelStatusRequest, opts ...grpc.CallOption) (*GetModelStatusResponse, error)
}

// ModelServiceChatStreamClient is the receive side of a ChatStream call.
type ModelServiceChatStreamClient interface {
	Recv() (*ChatChunk, error)
	grpc.ClientStream
}

type modelServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewModelServiceClient creates a client over an established connection.
// The connection must carry the JSON codec call option (see CallOption).
func NewModelServiceClient(cc grpc.ClientConnInterface) ModelServiceClient {
	return &modelServiceClient{cc: cc}
}

func invokeModel[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+ModelServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *modelServiceClient) Chat(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (*ChatResponse, error) {
	return invokeModel[ChatResponse](ctx, c.cc, "Chat", in, opts)
}

func (c *modelServiceClient) ChatStream(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (ModelServiceChatStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ModelServiceDesc.Streams[0], "/"+ModelServiceName+"/ChatStream", opts...)
	if err != nil {
		return nil, err
	}
	x := &modelServiceChatStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type modelServiceChatStreamClient struct {
	grpc.ClientStream
}

func (x *modelServiceChatStreamClient) Recv() (*ChatChunk, error) {
	c := new(ChatChunk)
	if err := x.ClientStream.RecvMsg(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *modelServiceClient) ListModels(ctx context.Context, in *ListModelsRequest, opts ...grpc.CallOption) (*ListModelsResponse, error) {
	return invokeModel[ListModelsResponse](ctx, c.cc, "ListModels", in, opts)
}

func (c *modelServiceClient) GetModelCapabilities(ctx context.Context, in *GetModelCapabilitiesRequest, opts ...grpc.CallOption) (*ModelInfo, error) {
	return invokeModel[ModelInfo](ctx, c.cc, "GetModelCapabilities", in, opts)
}

func (c *modelServiceClient) RegisterPrompt(ctx context.Context, in *RegisterPromptRequest, opts ...grpc.CallOption) (*Prompt, error) {
	return invokeModel[Prompt](ctx, c.cc, "RegisterPrompt", in, opts)
}

func (c *modelServiceClient) GetPrompt(ctx context.Context, in *GetPromptRequest, opts ...grpc.CallOption) (*Prompt, error) {
	return invokeModel[Prompt](ctx, c.cc, "GetPrompt", in, opts)
}

func (c *modelServiceClient) ListPrompts(ctx context.Context, in *ListPromptsRequest, opts ...grpc.CallOption) (*ListPromptsResponse, error) {
	return invokeModel[ListPromptsResponse](ctx, c.cc, "ListPrompts", in, opts)
}

func (c *modelServiceClient) RegisterModel(ctx context.Context, in *RegisterModelRequest, opts ...grpc.CallOption) (*RegisteredModel, error) {
	return invokeModel[RegisteredModel](ctx, c.cc, "RegisterModel", in, opts)
}

func (c *modelServiceClient) ListRegisteredModels(ctx context.Context, in *ListRegisteredModelsRequest, opts ...grpc.CallOption) (*ListRegisteredModelsResponse, error) {
	return invokeModel[ListRegisteredModelsResponse](ctx, c.cc, "ListRegisteredModels", in, opts)
}

func (c *modelServiceClient) GetModelStatus(ctx context.Context, in *GetModelStatusRequest, opts ...grpc.CallOption) (*GetModelStatusResponse, error) {
	return invokeModel[GetModelStatusResponse](ctx, c.cc, "GetModelStatus", in, opts)
}
