package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/pkg/api"
)

// openaiBuiltinModels is what this adapter auto-reports to the resolver.
var openaiBuiltinModels = []api.ModelInfo{
	{
		Name:     "gpt-4o",
		Provider: TypeOpenAI,
		Capabilities: api.ModelCapabilities{
			ContextWindow:  128000,
			SupportsVision: true,
			SupportsTools:  true,
		},
	},
	{
		Name:     "gpt-4o-mini",
		Provider: TypeOpenAI,
		Capabilities: api.ModelCapabilities{
			ContextWindow:  128000,
			SupportsVision: true,
			SupportsTools:  true,
		},
	},
}

// OpenAIProvider adapts the OpenAI chat completion API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAI creates the adapter from provider credentials.
func NewOpenAI(cfg config.ProviderConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientConfig)}
}

func (p *OpenAIProvider) Name() string { return TypeOpenAI }

func (p *OpenAIProvider) SupportedModels() []api.ModelInfo {
	out := make([]api.ModelInfo, len(openaiBuiltinModels))
	copy(out, openaiBuiltinModels)
	return out
}

func (p *OpenAIProvider) Chat(ctx context.Context, req *Request) (*api.ChatResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response contained no choices")
	}

	choice := resp.Choices[0]
	return &api.ChatResponse{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		Provider:     TypeOpenAI,
		ToolCalls:    fromOpenAIToolCalls(choice.Message.ToolCalls),
		FinishReason: normalizeFinishReason(string(choice.FinishReason)),
		Usage: &api.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, req *Request) (*Stream, error) {
	request := p.buildRequest(req, true)
	request.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}

	out := NewStream()
	go p.processStream(ctx, stream, out)
	return out, nil
}

// processStream pumps vendor deltas into the fragment stream. The final
// fragment carries the finish reason and the usage totals the API reports
// on its terminal usage chunk; a mid-stream receive failure closes the
// stream with the cause instead.
func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, out *Stream) {
	defer stream.Close()

	index := 0
	finishReason := ""
	var usage *api.TokenUsage

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			out.Send(ctx, &api.ChatChunk{
				Index:        index,
				FinishReason: normalizeFinishReason(finishReason),
				Usage:        usage,
			})
			out.Close(nil)
			return
		}
		if err != nil {
			out.Close(fmt.Errorf("openai: stream recv: %w", err))
			return
		}

		if response.Usage != nil {
			usage = &api.TokenUsage{
				PromptTokens:     response.Usage.PromptTokens,
				CompletionTokens: response.Usage.CompletionTokens,
				TotalTokens:      response.Usage.TotalTokens,
			}
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}

		if !out.Send(ctx, &api.ChatChunk{Token: choice.Delta.Content, Index: index}) {
			// Caller abandoned the stream; nothing left to surface.
			out.Close(nil)
			return
		}
		index++
	}
}

func (p *OpenAIProvider) buildRequest(req *Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toOpenAIToolCalls(m.ToolCalls),
		})
	}

	request := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		TopP:        float32(req.TopP),
		Stop:        req.StopSequences,
		Stream:      stream,
	}
	for _, t := range req.Tools {
		var params any
		if len(t.Parameters) > 0 {
			params = json.RawMessage(t.Parameters)
		}
		request.Tools = append(request.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	if req.ResponseFormat != nil {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatType(req.ResponseFormat.Type),
		}
	}
	return request
}

func toOpenAIToolCalls(calls []api.ToolCall) []openai.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openai.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, openai.ToolCall{
			ID:   c.ID,
			Type: openai.ToolType(c.Type),
			Function: openai.FunctionCall{
				Name:      c.Function.Name,
				Arguments: c.Function.Arguments,
			},
		})
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []api.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]api.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, api.ToolCall{
			ID:   c.ID,
			Type: string(c.Type),
			Function: api.FunctionCall{
				Name:      c.Function.Name,
				Arguments: c.Function.Arguments,
			},
		})
	}
	return out
}

// normalizeFinishReason maps an absent vendor finish reason to the shared
// default.
func normalizeFinishReason(reason string) string {
	if reason == "" {
		return "stop"
	}
	return reason
}
