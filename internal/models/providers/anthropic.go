package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/pkg/api"
)

// anthropicBuiltinModels is what this adapter auto-reports to the resolver.
var anthropicBuiltinModels = []api.ModelInfo{
	{Name: "claude-sonnet-4-5", Provider: TypeAnthropic, Capabilities: claudeCapabilities},
	{Name: "claude-haiku-4-5", Provider: TypeAnthropic, Capabilities: claudeCapabilities},
	{Name: "claude-opus-4-5", Provider: TypeAnthropic, Capabilities: claudeCapabilities},
	{Name: "claude-opus-4-1", Provider: TypeAnthropic, Capabilities: claudeCapabilities},
}

var claudeCapabilities = api.ModelCapabilities{
	ContextWindow:  200000,
	SupportsVision: true,
	SupportsTools:  true,
}

// AnthropicProvider adapts the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropic creates the adapter from provider credentials.
func NewAnthropic(cfg config.ProviderConfig) *AnthropicProvider {
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(options...)}
}

func (p *AnthropicProvider) Name() string { return TypeAnthropic }

func (p *AnthropicProvider) SupportedModels() []api.ModelInfo {
	out := make([]api.ModelInfo, len(anthropicBuiltinModels))
	copy(out, anthropicBuiltinModels)
	return out
}

func (p *AnthropicProvider) Chat(ctx context.Context, req *Request) (*api.ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	var text strings.Builder
	var toolCalls []api.ToolCall
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			toolCalls = append(toolCalls, api.ToolCall{
				ID:   toolUse.ID,
				Type: "function",
				Function: api.FunctionCall{
					Name:      toolUse.Name,
					Arguments: string(toolUse.Input),
				},
			})
		}
	}

	usage := &api.TokenUsage{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}
	return &api.ChatResponse{
		Text:         text.String(),
		Model:        req.Model,
		Provider:     TypeAnthropic,
		Usage:        usage,
		ToolCalls:    toolCalls,
		FinishReason: normalizeFinishReason(string(message.StopReason)),
	}, nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, req *Request) (*Stream, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	out := NewStream()
	go p.processStream(ctx, stream, out)
	return out, nil
}

// processStream walks the SSE event sequence. Usage arrives split across
// message_start (input tokens) and message_delta (output tokens); the
// final fragment carries the combined totals. The event walk ending
// without message_stop is a truncated stream and closes with an error.
func (p *AnthropicProvider) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out *Stream) {
	defer stream.Close()

	index := 0
	inputTokens := 0
	outputTokens := 0
	stopReason := ""

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			inputTokens = int(messageStart.Message.Usage.InputTokens)

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			if delta.Type != "text_delta" || delta.Text == "" {
				continue
			}
			if !out.Send(ctx, &api.ChatChunk{Token: delta.Text, Index: index}) {
				// Caller abandoned the stream; nothing left to surface.
				out.Close(nil)
				return
			}
			index++

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				outputTokens = int(messageDelta.Usage.OutputTokens)
			}
			if messageDelta.Delta.StopReason != "" {
				stopReason = string(messageDelta.Delta.StopReason)
			}

		case "message_stop":
			out.Send(ctx, &api.ChatChunk{
				Index:        index,
				FinishReason: normalizeFinishReason(stopReason),
				Usage: &api.TokenUsage{
					PromptTokens:     inputTokens,
					CompletionTokens: outputTokens,
					TotalTokens:      inputTokens + outputTokens,
				},
			})
			out.Close(nil)
			return
		}
	}

	if err := stream.Err(); err != nil {
		out.Close(fmt.Errorf("anthropic: stream: %w", err))
		return
	}
	out.Close(errors.New("anthropic: stream ended before message_stop"))
}

func (p *AnthropicProvider) buildParams(req *Request) (anthropic.MessageNewParams, error) {
	system, messages, err := convertAnthropicMessages(req)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	// The Messages API discourages combining temperature and top_p;
	// temperature wins when both are set.
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	} else if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	for _, t := range req.Tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: tool %s schema: %w", t.Name, err)
			}
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if t.Description != "" {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		params.Tools = append(params.Tools, toolParam)
	}
	return params, nil
}

// convertAnthropicMessages splits system turns out of the history (they
// are a separate parameter in this API) and maps the rest.
func convertAnthropicMessages(req *Request) (string, []anthropic.MessageParam, error) {
	systemParts := []string{}
	if req.SystemPrompt != "" {
		systemParts = append(systemParts, req.SystemPrompt)
	}

	var result []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleSystem:
			systemParts = append(systemParts, m.Content)

		case api.RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))

		case api.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				input := map[string]any{}
				if call.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
						return "", nil, fmt.Errorf("anthropic: tool call %s arguments: %w", call.ID, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Function.Name))
			}
			if len(content) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(content...))

		case api.RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))

		default:
			return "", nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	return strings.Join(systemParts, "\n"), result, nil
}
