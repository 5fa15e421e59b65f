// Package api defines the wire contract for the Lattice platform services.
//
// The contract is declared directly in Go: plain structs carried over gRPC
// with the JSON codec registered by this package, and explicit service
// descriptors (see model_grpc.go and sessions_grpc.go) that enumerate every
// method once. Servers and clients on both sides of the gateway share these
// types, so the generic proxy never needs to understand payload contents.
package api

import (
	"encoding/json"
	"time"
)

// Chat roles used in message logs and model requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FunctionCall is the name/arguments pair inside a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ChatMessage is one turn of a conversation, both in session logs and in
// model requests. Content may be empty for pure tool-call turns.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// ChatConfig tunes a single inference call. Zero values mean "use the
// service defaults" (temperature 0.7, max_tokens 512, top_p 1.0).
type ChatConfig struct {
	Temperature   float64  `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// ToolDefinition describes a tool the model may call. The schema is passed
// through to the provider unchanged.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ResponseFormat hints the desired output shape (e.g. {"type":"json_object"}).
type ResponseFormat struct {
	Type   string          `json:"type"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// ChatRequest asks the model service for a completion. Model may be empty,
// in which case the service picks its configured default. SystemPromptName,
// when set, is resolved against the prompt registry before any provider is
// contacted.
type ChatRequest struct {
	Model            string           `json:"model,omitempty"`
	Messages         []ChatMessage    `json:"messages"`
	Config           *ChatConfig      `json:"config,omitempty"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat   *ResponseFormat  `json:"response_format,omitempty"`
	SystemPromptName string           `json:"system_prompt_name,omitempty"`
}

// TokenUsage is the normalized usage accounting across providers.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the uniform non-streaming completion result.
type ChatResponse struct {
	Text         string      `json:"text"`
	Model        string      `json:"model"`
	Provider     string      `json:"provider"`
	Usage        *TokenUsage `json:"usage,omitempty"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatChunk is one fragment of a streamed completion. The final chunk
// carries the finish reason and, when the provider reports it, usage totals.
type ChatChunk struct {
	Token        string      `json:"token,omitempty"`
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// ModelCapabilities describes what a model can do.
type ModelCapabilities struct {
	ContextWindow  int  `json:"context_window"`
	SupportsVision bool `json:"supports_vision"`
	SupportsTools  bool `json:"supports_tools"`
}

// ModelInfo is the read-only shape a provider reports for its built-in
// models, and the merged shape returned by ListModels.
type ModelInfo struct {
	Name         string            `json:"name"`
	Provider     string            `json:"provider"`
	Capabilities ModelCapabilities `json:"capabilities"`
}

// RegisteredModel is an explicit registration in the model registry. It
// shadows any provider model of the same name.
type RegisteredModel struct {
	Name         string            `json:"name"`
	Endpoint     string            `json:"endpoint,omitempty"`
	Capabilities ModelCapabilities `json:"capabilities"`
	HealthCheck  string            `json:"health_check,omitempty"`
	AdapterType  string            `json:"adapter_type"`
	Provider     string            `json:"provider"`
	Status       string            `json:"status"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// PromptMetadata is free-form provenance attached to a prompt version.
type PromptMetadata struct {
	Author     string   `json:"author,omitempty"`
	ReviewedBy string   `json:"reviewed_by,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Prompt is one immutable version of a named system prompt. Versions start
// at 1 and only ever grow.
type Prompt struct {
	Name      string         `json:"name"`
	Version   int            `json:"version"`
	Content   string         `json:"content"`
	Metadata  PromptMetadata `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListModelsRequest has no parameters today; the struct exists so the
// method signature can grow without breaking the dispatch table.
type ListModelsRequest struct{}

// ListModelsResponse merges provider-discovered and registered models,
// de-duplicated by name with registrations winning.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// GetModelCapabilitiesRequest names the model to inspect.
type GetModelCapabilitiesRequest struct {
	Model string `json:"model"`
}

// RegisterPromptRequest appends a new version of a named prompt.
type RegisterPromptRequest struct {
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Metadata PromptMetadata `json:"metadata"`
}

// GetPromptRequest fetches a prompt version. Version 0 (or omitted) means
// the latest version.
type GetPromptRequest struct {
	Name    string `json:"name"`
	Version int    `json:"version,omitempty"`
}

// ListPromptsRequest has no parameters.
type ListPromptsRequest struct{}

// ListPromptsResponse returns the latest version of every known prompt.
type ListPromptsResponse struct {
	Prompts []Prompt `json:"prompts"`
}

// RegisterModelRequest adds an explicit model registration. AdapterType and
// Provider default to "openai" and "custom" when empty.
type RegisterModelRequest struct {
	Name         string            `json:"name"`
	Endpoint     string            `json:"endpoint,omitempty"`
	Capabilities ModelCapabilities `json:"capabilities"`
	HealthCheck  string            `json:"health_check,omitempty"`
	AdapterType  string            `json:"adapter_type,omitempty"`
	Provider     string            `json:"provider,omitempty"`
}

// ListRegisteredModelsRequest has no parameters.
type ListRegisteredModelsRequest struct{}

// ListRegisteredModelsResponse returns every explicit registration.
type ListRegisteredModelsResponse struct {
	Models []RegisteredModel `json:"models"`
}

// GetModelStatusRequest names the registered model to inspect.
type GetModelStatusRequest struct {
	Model string `json:"model"`
}

// GetModelStatusResponse reports the registration's lifecycle status.
type GetModelStatusResponse struct {
	Model  string `json:"model"`
	Status string `json:"status"`
}
