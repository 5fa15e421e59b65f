package sessions

import (
	"context"
	"log/slog"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/pkg/api"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), slog.New(slog.DiscardHandler))
}

func TestService_GetOrCreateSessionValidation(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetOrCreateSession(context.Background(), &api.GetOrCreateSessionRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty user_id: code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestService_AddMessagesUnknownSessionIsInternal(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddMessages(context.Background(), &api.AddMessagesRequest{
		SessionID: "ghost",
		Messages:  []api.ChatMessage{{Role: api.RoleUser, Content: "hi"}},
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("unknown session: code = %v, want Internal", status.Code(err))
	}
}

// ctxRecordingStore captures the context each store call receives so
// tests can assert what the RPC layer stamped onto it.
type ctxRecordingStore struct {
	Store
	lastCtx context.Context
}

func (c *ctxRecordingStore) GetOrCreate(ctx context.Context, userID, sessionID string) (*api.Session, error) {
	c.lastCtx = ctx
	return c.Store.GetOrCreate(ctx, userID, sessionID)
}

func (c *ctxRecordingStore) AddMessages(ctx context.Context, sessionID string, msgs []api.ChatMessage) (int, error) {
	c.lastCtx = ctx
	return c.Store.AddMessages(ctx, sessionID, msgs)
}

func TestService_StampsIdentityOnContext(t *testing.T) {
	store := &ctxRecordingStore{Store: NewMemoryStore()}
	svc := NewService(store, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	sess, err := svc.GetOrCreateSession(ctx, &api.GetOrCreateSessionRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("GetOrCreateSession() error = %v", err)
	}
	if got, _ := store.lastCtx.Value(observability.UserIDKey).(string); got != "alice" {
		t.Errorf("user id on context = %q, want alice", got)
	}

	_, err = svc.AddMessages(ctx, &api.AddMessagesRequest{
		SessionID: sess.SessionID,
		Messages:  []api.ChatMessage{{Role: api.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("AddMessages() error = %v", err)
	}
	if got, _ := store.lastCtx.Value(observability.SessionIDKey).(string); got != sess.SessionID {
		t.Errorf("session id on context = %q, want %q", got, sess.SessionID)
	}
}

func TestService_MessageFlow(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.GetOrCreateSession(ctx, &api.GetOrCreateSessionRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("GetOrCreateSession() error = %v", err)
	}

	added, err := svc.AddMessages(ctx, &api.AddMessagesRequest{
		SessionID: sess.SessionID,
		Messages: []api.ChatMessage{
			{Role: api.RoleUser, Content: "hello"},
			{Role: api.RoleAssistant, Content: "hi there"},
		},
	})
	if err != nil {
		t.Fatalf("AddMessages() error = %v", err)
	}
	if !added.Success || added.MessageCount != 2 {
		t.Errorf("AddMessages() = %+v", added)
	}

	got, err := svc.GetMessages(ctx, &api.GetMessagesRequest{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if got.TotalCount != 2 || len(got.Messages) != 2 {
		t.Errorf("GetMessages() = %+v", got)
	}
	if got.Messages[0].Timestamp.IsZero() {
		t.Error("stored message has no timestamp")
	}

	deleted, err := svc.DeleteSession(ctx, &api.DeleteSessionRequest{SessionID: sess.SessionID})
	if err != nil || !deleted.Success {
		t.Fatalf("DeleteSession() = %+v, %v", deleted, err)
	}

	got, err = svc.GetMessages(ctx, &api.GetMessagesRequest{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("GetMessages() after delete error = %v", err)
	}
	if got.TotalCount != 0 || len(got.Messages) != 0 {
		t.Errorf("GetMessages() after delete = %+v, want empty", got)
	}
}
