package models

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/lattice/internal/models/providers"
	"github.com/haasonsaas/lattice/pkg/api"
)

// fakeProvider is an in-memory adapter used across the package tests. It
// records the last request so tests can assert on what the service
// actually sent downstream.
type fakeProvider struct {
	name      string
	models    []api.ModelInfo
	lastReq   *providers.Request
	calls     int
	chatErr   error
	response  *api.ChatResponse
	chunks    []*api.ChatChunk
	streamErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SupportedModels() []api.ModelInfo {
	out := make([]api.ModelInfo, len(f.models))
	copy(out, f.models)
	return out
}

func (f *fakeProvider) Chat(_ context.Context, req *providers.Request) (*api.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.response != nil {
		return f.response, nil
	}
	return &api.ChatResponse{Text: "ok", Model: req.Model, Provider: f.name, FinishReason: "stop"}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req *providers.Request) (*providers.Stream, error) {
	f.calls++
	f.lastReq = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	out := providers.NewStream()
	go func() {
		for _, c := range f.chunks {
			if !out.Send(ctx, c) {
				out.Close(nil)
				return
			}
		}
		out.Close(f.streamErr)
	}()
	return out, nil
}

func newFakeOpenAI() *fakeProvider {
	return &fakeProvider{
		name: providers.TypeOpenAI,
		models: []api.ModelInfo{
			{Name: "gpt-4o", Provider: providers.TypeOpenAI, Capabilities: api.ModelCapabilities{ContextWindow: 128000}},
			{Name: "gpt-4o-mini", Provider: providers.TypeOpenAI, Capabilities: api.ModelCapabilities{ContextWindow: 128000}},
		},
	}
}

func newFakeAnthropic() *fakeProvider {
	return &fakeProvider{
		name: providers.TypeAnthropic,
		models: []api.ModelInfo{
			{Name: "claude-sonnet-4-5", Provider: providers.TypeAnthropic, Capabilities: api.ModelCapabilities{ContextWindow: 200000}},
		},
	}
}

func TestResolver_ScansAdaptersInOrder(t *testing.T) {
	first := &fakeProvider{name: "openai", models: []api.ModelInfo{{Name: "shared-model"}}}
	second := &fakeProvider{name: "anthropic", models: []api.ModelInfo{{Name: "shared-model"}}}
	r := NewResolver(NewModelRegistry(), []providers.Provider{first, second})

	p, err := r.Resolve("shared-model")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("resolved %q, want the first configured adapter", p.Name())
	}
}

func TestResolver_RegistryBindsAdapterType(t *testing.T) {
	registry := NewModelRegistry()
	registry.Register(&api.RegisterModelRequest{Name: "my-claude", AdapterType: providers.TypeAnthropic})
	r := NewResolver(registry, []providers.Provider{newFakeOpenAI(), newFakeAnthropic()})

	p, err := r.Resolve("my-claude")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Name() != providers.TypeAnthropic {
		t.Errorf("resolved %q, want the registered adapter type", p.Name())
	}
}

func TestResolver_UnconfiguredAdapterTypeDoesNotFallThrough(t *testing.T) {
	// gpt-4o would resolve via the openai adapter scan, but the explicit
	// registration pins it to an adapter type that is not configured. The
	// registration must win, as a hard failure.
	registry := NewModelRegistry()
	registry.Register(&api.RegisterModelRequest{Name: "gpt-4o", AdapterType: providers.TypeAnthropic})
	r := NewResolver(registry, []providers.Provider{newFakeOpenAI()})

	if _, err := r.Resolve("gpt-4o"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolver_UnknownModel(t *testing.T) {
	r := NewResolver(NewModelRegistry(), []providers.Provider{newFakeOpenAI()})
	if _, err := r.Resolve("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolver_DefaultModel(t *testing.T) {
	r := NewResolver(NewModelRegistry(), []providers.Provider{newFakeOpenAI(), newFakeAnthropic()})
	model, err := r.DefaultModel()
	if err != nil {
		t.Fatalf("DefaultModel() error = %v", err)
	}
	if model != "gpt-4o" {
		t.Errorf("DefaultModel() = %q, want gpt-4o", model)
	}

	anthropicOnly := NewResolver(NewModelRegistry(), []providers.Provider{newFakeAnthropic()})
	model, err = anthropicOnly.DefaultModel()
	if err != nil {
		t.Fatalf("DefaultModel() error = %v", err)
	}
	if model != "claude-sonnet-4-5" {
		t.Errorf("DefaultModel() = %q, want claude-sonnet-4-5", model)
	}

	empty := NewResolver(NewModelRegistry(), nil)
	if _, err := empty.DefaultModel(); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("DefaultModel() error = %v, want ErrNoProviders", err)
	}
}

func TestResolver_CapabilitiesRegistryFirst(t *testing.T) {
	registry := NewModelRegistry()
	registry.Register(&api.RegisterModelRequest{
		Name:         "gpt-4o",
		AdapterType:  providers.TypeOpenAI,
		Provider:     "custom",
		Capabilities: api.ModelCapabilities{ContextWindow: 99, SupportsTools: true},
	})
	r := NewResolver(registry, []providers.Provider{newFakeOpenAI()})

	info, err := r.Capabilities("gpt-4o")
	if err != nil {
		t.Fatalf("Capabilities() error = %v", err)
	}
	if info.Capabilities.ContextWindow != 99 {
		t.Errorf("ContextWindow = %d, want the registered value to shadow the adapter", info.Capabilities.ContextWindow)
	}
}

func TestResolver_ListModelsMergesWithRegistryWinning(t *testing.T) {
	registry := NewModelRegistry()
	registry.Register(&api.RegisterModelRequest{
		Name:         "gpt-4o",
		Provider:     "custom",
		Capabilities: api.ModelCapabilities{ContextWindow: 42},
	})
	registry.Register(&api.RegisterModelRequest{Name: "zz-local"})
	r := NewResolver(registry, []providers.Provider{newFakeOpenAI(), newFakeAnthropic()})

	models := r.ListModels()
	// claude-sonnet-4-5, gpt-4o, gpt-4o-mini, zz-local
	if len(models) != 4 {
		t.Fatalf("ListModels() returned %d models, want 4", len(models))
	}
	for i := 1; i < len(models); i++ {
		if models[i-1].Name >= models[i].Name {
			t.Fatalf("ListModels() not sorted: %q before %q", models[i-1].Name, models[i].Name)
		}
	}
	for _, m := range models {
		if m.Name == "gpt-4o" && m.Capabilities.ContextWindow != 42 {
			t.Errorf("gpt-4o context window = %d, want the registry entry to win", m.Capabilities.ContextWindow)
		}
	}
}
