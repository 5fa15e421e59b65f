package sessions

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/pkg/api"
)

// Service exposes a Store over the session RPC contract. Unexpected store
// failures surface as Internal; validation failures as InvalidArgument.
// Each handler stamps the session or user identity onto the context so
// log lines carry it without per-call attributes.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates the RPC layer over a storage backend.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) GetOrCreateSession(ctx context.Context, req *api.GetOrCreateSessionRequest) (*api.Session, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	ctx = observability.WithUserID(ctx, req.UserID)
	sess, err := s.store.GetOrCreate(ctx, req.UserID, req.SessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "get or create session failed", "error", err)
		return nil, status.Errorf(codes.Internal, "get or create session: %v", err)
	}
	return sess, nil
}

func (s *Service) AddMessages(ctx context.Context, req *api.AddMessagesRequest) (*api.AddMessagesResponse, error) {
	if req == nil || req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	ctx = observability.WithSessionID(ctx, req.SessionID)
	// Appending to a session that was never created is a caller
	// programming error on an internal surface, not a lookup miss.
	n, err := s.store.AddMessages(ctx, req.SessionID, req.Messages)
	if err != nil {
		s.logger.ErrorContext(ctx, "add messages failed", "error", err)
		return nil, status.Errorf(codes.Internal, "add messages: %v", err)
	}
	return &api.AddMessagesResponse{Success: true, MessageCount: n}, nil
}

func (s *Service) GetMessages(ctx context.Context, req *api.GetMessagesRequest) (*api.GetMessagesResponse, error) {
	if req == nil || req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	ctx = observability.WithSessionID(ctx, req.SessionID)
	msgs, total, err := s.store.GetMessages(ctx, req.SessionID, req.Limit, req.Offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "get messages failed", "error", err)
		return nil, status.Errorf(codes.Internal, "get messages: %v", err)
	}
	return &api.GetMessagesResponse{Messages: msgs, TotalCount: total}, nil
}

func (s *Service) DeleteSession(ctx context.Context, req *api.DeleteSessionRequest) (*api.DeleteSessionResponse, error) {
	if req == nil || req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	ctx = observability.WithSessionID(ctx, req.SessionID)
	existed, err := s.store.DeleteSession(ctx, req.SessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "delete session failed", "error", err)
		return nil, status.Errorf(codes.Internal, "delete session: %v", err)
	}
	return &api.DeleteSessionResponse{Success: existed}, nil
}

func (s *Service) SaveMemory(ctx context.Context, req *api.SaveMemoryRequest) (*api.SaveMemoryResponse, error) {
	if req == nil || req.UserID == "" || req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and key are required")
	}
	ctx = memoryContext(ctx, req.UserID, req.SessionID)
	if err := s.store.SaveMemory(ctx, req.UserID, req.Key, req.Value, req.SessionID); err != nil {
		s.logger.ErrorContext(ctx, "save memory failed", "key", req.Key, "error", err)
		return nil, status.Errorf(codes.Internal, "save memory: %v", err)
	}
	return &api.SaveMemoryResponse{Success: true}, nil
}

func (s *Service) GetMemory(ctx context.Context, req *api.GetMemoryRequest) (*api.GetMemoryResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	ctx = memoryContext(ctx, req.UserID, req.SessionID)
	memories, err := s.store.GetMemory(ctx, req.UserID, req.Key, req.SessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "get memory failed", "error", err)
		return nil, status.Errorf(codes.Internal, "get memory: %v", err)
	}
	return &api.GetMemoryResponse{Memories: memories}, nil
}

func (s *Service) DeleteMemory(ctx context.Context, req *api.DeleteMemoryRequest) (*api.DeleteMemoryResponse, error) {
	if req == nil || req.UserID == "" || req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and key are required")
	}
	ctx = memoryContext(ctx, req.UserID, req.SessionID)
	existed, err := s.store.DeleteMemory(ctx, req.UserID, req.Key, req.SessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "delete memory failed", "key", req.Key, "error", err)
		return nil, status.Errorf(codes.Internal, "delete memory: %v", err)
	}
	return &api.DeleteMemoryResponse{Success: existed}, nil
}

func (s *Service) ClearUserMemory(ctx context.Context, req *api.ClearUserMemoryRequest) (*api.ClearUserMemoryResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	ctx = observability.WithUserID(ctx, req.UserID)
	n, err := s.store.ClearUserMemory(ctx, req.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "clear user memory failed", "error", err)
		return nil, status.Errorf(codes.Internal, "clear user memory: %v", err)
	}
	return &api.ClearUserMemoryResponse{Count: n}, nil
}

// memoryContext stamps the identity of a memory operation: always the
// user, plus the session when the call addresses session scope.
func memoryContext(ctx context.Context, userID, sessionID string) context.Context {
	ctx = observability.WithUserID(ctx, userID)
	if sessionID != "" {
		ctx = observability.WithSessionID(ctx, sessionID)
	}
	return ctx
}
