package providers

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/pkg/api"
)

func TestOpenAI_BuildRequestPrependsSystemPrompt(t *testing.T) {
	p := NewOpenAI(config.ProviderConfig{APIKey: "test"})

	req := &Request{
		Model:        "gpt-4o",
		SystemPrompt: "be terse",
		Messages: []api.ChatMessage{
			{Role: api.RoleUser, Content: "hi"},
		},
		Temperature: 0.7,
		MaxTokens:   512,
		TopP:        1.0,
	}
	built := p.buildRequest(req, false)

	if len(built.Messages) != 2 {
		t.Fatalf("built %d messages, want 2", len(built.Messages))
	}
	if built.Messages[0].Role != openai.ChatMessageRoleSystem || built.Messages[0].Content != "be terse" {
		t.Errorf("first message = %+v, want the system prompt", built.Messages[0])
	}
	if built.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", built.MaxTokens)
	}
}

func TestOpenAI_BuildRequestMapsTools(t *testing.T) {
	p := NewOpenAI(config.ProviderConfig{APIKey: "test"})

	req := &Request{
		Model: "gpt-4o",
		Tools: []api.ToolDefinition{
			{Name: "search", Description: "web search", Parameters: []byte(`{"type":"object"}`)},
		},
	}
	built := p.buildRequest(req, true)

	if len(built.Tools) != 1 {
		t.Fatalf("built %d tools, want 1", len(built.Tools))
	}
	if built.Tools[0].Function.Name != "search" {
		t.Errorf("tool name = %q", built.Tools[0].Function.Name)
	}
	if !built.Stream {
		t.Error("Stream not set")
	}
}

func TestAnthropic_ConvertMessagesSplitsSystem(t *testing.T) {
	req := &Request{
		SystemPrompt: "prompt one",
		Messages: []api.ChatMessage{
			{Role: api.RoleSystem, Content: "prompt two"},
			{Role: api.RoleUser, Content: "hello"},
			{Role: api.RoleAssistant, Content: "hi"},
		},
	}
	system, messages, err := convertAnthropicMessages(req)
	if err != nil {
		t.Fatalf("convertAnthropicMessages() error = %v", err)
	}
	if system != "prompt one\nprompt two" {
		t.Errorf("system = %q, want joined prompts", system)
	}
	if len(messages) != 2 {
		t.Errorf("converted %d messages, want 2 (system turns removed)", len(messages))
	}
}

func TestAnthropic_ConvertMessagesRejectsUnknownRole(t *testing.T) {
	req := &Request{Messages: []api.ChatMessage{{Role: "narrator", Content: "x"}}}
	if _, _, err := convertAnthropicMessages(req); err == nil {
		t.Fatal("unknown role accepted, want error")
	}
}

func TestSupportedModels_Copies(t *testing.T) {
	p := NewAnthropic(config.ProviderConfig{APIKey: "test"})

	first := p.SupportedModels()
	first[0].Name = "mutated"
	second := p.SupportedModels()
	if second[0].Name == "mutated" {
		t.Error("SupportedModels() exposes shared backing storage")
	}
}

func TestStream_ErrVisibleAfterClose(t *testing.T) {
	werr := errors.New("upstream reset")
	s := NewStream()
	go func() {
		s.Send(context.Background(), &api.ChatChunk{Token: "partial"})
		s.Close(werr)
	}()

	var got []*api.ChatChunk
	for c := range s.Chunks() {
		got = append(got, c)
	}
	if len(got) != 1 || got[0].Token != "partial" {
		t.Fatalf("received %+v, want the fragment sent before the failure", got)
	}
	if !errors.Is(s.Err(), werr) {
		t.Errorf("Err() = %v, want the close error", s.Err())
	}
}

func TestStream_CleanCloseHasNoError(t *testing.T) {
	s := NewStream()
	go func() {
		s.Send(context.Background(), &api.ChatChunk{Index: 0, FinishReason: "stop"})
		s.Close(nil)
	}()

	for range s.Chunks() {
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() after clean close = %v, want nil", err)
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	if got := normalizeFinishReason(""); got != "stop" {
		t.Errorf("normalizeFinishReason(\"\") = %q, want stop", got)
	}
	if got := normalizeFinishReason("end_turn"); got != "end_turn" {
		t.Errorf("normalizeFinishReason(end_turn) = %q", got)
	}
}
