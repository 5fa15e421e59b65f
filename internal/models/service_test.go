package models

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/internal/models/providers"
	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/pkg/api"
)

func newTestService(adapters ...providers.Provider) *Service {
	registry := NewModelRegistry()
	tracer, _ := observability.NewTracer("models-test", config.TracingConfig{})
	return NewService(
		NewResolver(registry, adapters),
		registry,
		NewPromptRegistry(),
		observability.NewMetrics(prometheus.NewRegistry()),
		tracer,
		slog.New(slog.DiscardHandler),
	)
}

func userTurn(text string) []api.ChatMessage {
	return []api.ChatMessage{{Role: api.RoleUser, Content: text}}
}

func TestChat_DefaultsApplied(t *testing.T) {
	fake := newFakeOpenAI()
	svc := newTestService(fake)

	if _, err := svc.Chat(context.Background(), &api.ChatRequest{Model: "gpt-4o", Messages: userTurn("hi")}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	got := fake.lastReq
	if got.Temperature != 0.7 || got.MaxTokens != 512 || got.TopP != 1.0 {
		t.Errorf("defaults = (%v, %v, %v), want (0.7, 512, 1.0)", got.Temperature, got.MaxTokens, got.TopP)
	}
}

func TestChat_ConfigOverridesDefaults(t *testing.T) {
	fake := newFakeOpenAI()
	svc := newTestService(fake)

	req := &api.ChatRequest{
		Model:    "gpt-4o",
		Messages: userTurn("hi"),
		Config:   &api.ChatConfig{Temperature: 0.2, MaxTokens: 64},
	}
	if _, err := svc.Chat(context.Background(), req); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	got := fake.lastReq
	if got.Temperature != 0.2 || got.MaxTokens != 64 {
		t.Errorf("config = (%v, %v), want the caller's values", got.Temperature, got.MaxTokens)
	}
	if got.TopP != 1.0 {
		t.Errorf("TopP = %v, want the default for the unset knob", got.TopP)
	}
}

func TestChat_EmptyModelUsesDefault(t *testing.T) {
	fake := newFakeAnthropic()
	svc := newTestService(fake)

	resp, err := svc.Chat(context.Background(), &api.ChatRequest{Messages: userTurn("hi")})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Model != "claude-sonnet-4-5" {
		t.Errorf("resolved model = %q, want the adapter's first model", resp.Model)
	}
}

func TestChat_NoModelNoProviders(t *testing.T) {
	svc := newTestService()

	_, err := svc.Chat(context.Background(), &api.ChatRequest{Messages: userTurn("hi")})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Chat() status = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestChat_UnknownModel(t *testing.T) {
	svc := newTestService(newFakeOpenAI())

	_, err := svc.Chat(context.Background(), &api.ChatRequest{Model: "nope", Messages: userTurn("hi")})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("Chat() status = %v, want NotFound", status.Code(err))
	}
}

func TestChat_MissingMessages(t *testing.T) {
	svc := newTestService(newFakeOpenAI())

	_, err := svc.Chat(context.Background(), &api.ChatRequest{Model: "gpt-4o"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Chat() status = %v, want InvalidArgument", status.Code(err))
	}
}

func TestChat_MissingPromptFailsBeforeAdapter(t *testing.T) {
	fake := newFakeOpenAI()
	svc := newTestService(fake)

	req := &api.ChatRequest{Model: "gpt-4o", Messages: userTurn("hi"), SystemPromptName: "ghost"}
	_, err := svc.Chat(context.Background(), req)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("Chat() status = %v, want NotFound", status.Code(err))
	}
	if fake.calls != 0 {
		t.Errorf("adapter called %d times, want 0 on prompt resolution failure", fake.calls)
	}
}

func TestChat_ResolvesLatestPromptVersion(t *testing.T) {
	fake := newFakeOpenAI()
	svc := newTestService(fake)

	ctx := context.Background()
	for _, content := range []string{"v1 content", "v2 content"} {
		if _, err := svc.RegisterPrompt(ctx, &api.RegisterPromptRequest{Name: "helper", Content: content}); err != nil {
			t.Fatalf("RegisterPrompt() error = %v", err)
		}
	}

	req := &api.ChatRequest{Model: "gpt-4o", Messages: userTurn("hi"), SystemPromptName: "helper"}
	if _, err := svc.Chat(ctx, req); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if fake.lastReq.SystemPrompt != "v2 content" {
		t.Errorf("SystemPrompt = %q, want the latest version", fake.lastReq.SystemPrompt)
	}
}

func TestChat_AdapterFailure(t *testing.T) {
	fake := newFakeOpenAI()
	fake.chatErr = context.DeadlineExceeded
	svc := newTestService(fake)

	_, err := svc.Chat(context.Background(), &api.ChatRequest{Model: "gpt-4o", Messages: userTurn("hi")})
	if status.Code(err) != codes.Internal {
		t.Fatalf("Chat() status = %v, want Internal", status.Code(err))
	}
}

// chunkCollector satisfies the stream send side without a live gRPC
// transport. The embedded nil ServerStream panics if any unstubbed method
// is touched, which no test path does.
type chunkCollector struct {
	grpc.ServerStream
	chunks []*api.ChatChunk
}

func (c *chunkCollector) Send(chunk *api.ChatChunk) error {
	c.chunks = append(c.chunks, chunk)
	return nil
}

func (c *chunkCollector) Context() context.Context { return context.Background() }

func TestChatStream_DeliversChunksInOrder(t *testing.T) {
	fake := newFakeOpenAI()
	fake.chunks = []*api.ChatChunk{
		{Token: "hel", Index: 0},
		{Token: "lo", Index: 1},
		{Index: 2, FinishReason: "stop", Usage: &api.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}},
	}
	svc := newTestService(fake)

	sink := &chunkCollector{}
	req := &api.ChatRequest{Model: "gpt-4o", Messages: userTurn("hi")}
	if err := svc.ChatStream(req, sink); err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if len(sink.chunks) != 3 {
		t.Fatalf("received %d chunks, want 3", len(sink.chunks))
	}
	if sink.chunks[0].Token+sink.chunks[1].Token != "hello" {
		t.Errorf("tokens = %q%q", sink.chunks[0].Token, sink.chunks[1].Token)
	}
	final := sink.chunks[2]
	if final.FinishReason != "stop" || final.Usage == nil || final.Usage.TotalTokens != 5 {
		t.Errorf("final chunk = %+v, want finish reason and usage", final)
	}
}

func TestChatStream_UpstreamFailureSurfacesInternal(t *testing.T) {
	// A vendor stream dying mid-call must not look like a clean end: the
	// caller keeps the fragments that made it out, then gets Internal
	// instead of OK with no final usage fragment.
	fake := newFakeOpenAI()
	fake.chunks = []*api.ChatChunk{{Token: "hel", Index: 0}}
	fake.streamErr = errors.New("connection reset mid-stream")
	svc := newTestService(fake)

	sink := &chunkCollector{}
	err := svc.ChatStream(&api.ChatRequest{Model: "gpt-4o", Messages: userTurn("hi")}, sink)
	if status.Code(err) != codes.Internal {
		t.Fatalf("ChatStream() status = %v, want Internal", status.Code(err))
	}
	if len(sink.chunks) != 1 || sink.chunks[0].Token != "hel" {
		t.Fatalf("delivered chunks = %+v, want the one fragment sent before the failure", sink.chunks)
	}
	last := sink.chunks[len(sink.chunks)-1]
	if last.FinishReason != "" || last.Usage != nil {
		t.Errorf("truncated stream fabricated a final fragment: %+v", last)
	}
}

func TestChatStream_ResolutionFailuresMatchChat(t *testing.T) {
	svc := newTestService(newFakeOpenAI())
	sink := &chunkCollector{}

	err := svc.ChatStream(&api.ChatRequest{Model: "nope", Messages: userTurn("hi")}, sink)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("ChatStream() status = %v, want NotFound", status.Code(err))
	}
	if len(sink.chunks) != 0 {
		t.Errorf("received %d chunks before resolution failure", len(sink.chunks))
	}
}

func TestPromptVersioning(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.RegisterPrompt(ctx, &api.RegisterPromptRequest{Name: "helper", Content: "one"})
	if err != nil {
		t.Fatalf("RegisterPrompt() error = %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("first version = %d, want 1", first.Version)
	}
	second, err := svc.RegisterPrompt(ctx, &api.RegisterPromptRequest{Name: "helper", Content: "two"})
	if err != nil {
		t.Fatalf("RegisterPrompt() error = %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("second version = %d, want 2", second.Version)
	}

	latest, err := svc.GetPrompt(ctx, &api.GetPromptRequest{Name: "helper"})
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}
	if latest.Version != 2 || latest.Content != "two" {
		t.Errorf("latest = v%d %q, want v2 \"two\"", latest.Version, latest.Content)
	}

	pinned, err := svc.GetPrompt(ctx, &api.GetPromptRequest{Name: "helper", Version: 1})
	if err != nil {
		t.Fatalf("GetPrompt(v1) error = %v", err)
	}
	if pinned.Content != "one" {
		t.Errorf("v1 content = %q, want the original text untouched", pinned.Content)
	}

	if _, err := svc.GetPrompt(ctx, &api.GetPromptRequest{Name: "helper", Version: 3}); status.Code(err) != codes.NotFound {
		t.Errorf("GetPrompt(v3) status = %v, want NotFound", status.Code(err))
	}
	if _, err := svc.GetPrompt(ctx, &api.GetPromptRequest{Name: "ghost"}); status.Code(err) != codes.NotFound {
		t.Errorf("GetPrompt(ghost) status = %v, want NotFound", status.Code(err))
	}
}

func TestListPrompts_LatestOnly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	svc.RegisterPrompt(ctx, &api.RegisterPromptRequest{Name: "b-prompt", Content: "one"})
	svc.RegisterPrompt(ctx, &api.RegisterPromptRequest{Name: "b-prompt", Content: "two"})
	svc.RegisterPrompt(ctx, &api.RegisterPromptRequest{Name: "a-prompt", Content: "solo"})

	resp, err := svc.ListPrompts(ctx, &api.ListPromptsRequest{})
	if err != nil {
		t.Fatalf("ListPrompts() error = %v", err)
	}
	if len(resp.Prompts) != 2 {
		t.Fatalf("listed %d prompts, want 2", len(resp.Prompts))
	}
	if resp.Prompts[0].Name != "a-prompt" || resp.Prompts[1].Version != 2 {
		t.Errorf("prompts = %+v, want sorted names and latest versions", resp.Prompts)
	}
}

func TestRegisterModel_DefaultsAndStatus(t *testing.T) {
	svc := newTestService(newFakeOpenAI())
	ctx := context.Background()

	model, err := svc.RegisterModel(ctx, &api.RegisterModelRequest{Name: "local-llm", Endpoint: "localhost:9999"})
	if err != nil {
		t.Fatalf("RegisterModel() error = %v", err)
	}
	if model.AdapterType != providers.TypeOpenAI || model.Provider != "custom" {
		t.Errorf("defaults = (%q, %q), want (openai, custom)", model.AdapterType, model.Provider)
	}
	if model.Status != "provisioning" || model.RegisteredAt.IsZero() {
		t.Errorf("registration = %+v, want provisioning status and a timestamp", model)
	}

	got, err := svc.GetModelStatus(ctx, &api.GetModelStatusRequest{Model: "local-llm"})
	if err != nil {
		t.Fatalf("GetModelStatus() error = %v", err)
	}
	if got.Status != "provisioning" {
		t.Errorf("status = %q, want provisioning", got.Status)
	}

	if _, err := svc.GetModelStatus(ctx, &api.GetModelStatusRequest{Model: "ghost"}); status.Code(err) != codes.NotFound {
		t.Errorf("GetModelStatus(ghost) status = %v, want NotFound", status.Code(err))
	}
}

func TestGetModelCapabilities_NotFound(t *testing.T) {
	svc := newTestService(newFakeOpenAI())

	_, err := svc.GetModelCapabilities(context.Background(), &api.GetModelCapabilitiesRequest{Model: "ghost"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("GetModelCapabilities() status = %v, want NotFound", status.Code(err))
	}
}
