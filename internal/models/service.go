package models

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/haasonsaas/lattice/internal/models/providers"
	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/pkg/api"
)

// Request config defaults applied when the caller leaves a knob unset.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 512
	defaultTopP        = 1.0
)

// Service exposes the resolver and registries over the model RPC
// contract.
type Service struct {
	resolver *Resolver
	registry *ModelRegistry
	prompts  *PromptRegistry
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *slog.Logger
}

// NewService assembles the model service.
func NewService(resolver *Resolver, registry *ModelRegistry, prompts *PromptRegistry, metrics *observability.Metrics, tracer *observability.Tracer, logger *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		registry: registry,
		prompts:  prompts,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
}

// prepare resolves the model name, the adapter, and the named system
// prompt, and applies config defaults. Everything that can fail with a
// caller-visible status happens here, before any vendor call.
func (s *Service) prepare(req *api.ChatRequest) (providers.Provider, *providers.Request, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, nil, status.Error(codes.InvalidArgument, "messages are required")
	}

	model := req.Model
	if model == "" {
		var err error
		model, err = s.resolver.DefaultModel()
		if err != nil {
			return nil, nil, status.Error(codes.FailedPrecondition, "no model specified and no provider adapters configured")
		}
	}

	provider, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, nil, status.Errorf(codes.NotFound, "%v", err)
	}

	systemPrompt := ""
	if req.SystemPromptName != "" {
		prompt, err := s.prompts.Get(req.SystemPromptName, 0)
		if err != nil {
			return nil, nil, status.Errorf(codes.NotFound, "%v", err)
		}
		systemPrompt = prompt.Content
	}

	preq := &providers.Request{
		Model:          model,
		Messages:       req.Messages,
		SystemPrompt:   systemPrompt,
		Temperature:    defaultTemperature,
		MaxTokens:      defaultMaxTokens,
		TopP:           defaultTopP,
		Tools:          req.Tools,
		ResponseFormat: req.ResponseFormat,
	}
	if cfg := req.Config; cfg != nil {
		if cfg.Temperature > 0 {
			preq.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			preq.MaxTokens = cfg.MaxTokens
		}
		if cfg.TopP > 0 {
			preq.TopP = cfg.TopP
		}
		preq.StopSequences = cfg.StopSequences
	}
	return provider, preq, nil
}

func (s *Service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	provider, preq, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.StartChatSpan(ctx, provider.Name(), preq.Model)
	defer span.End()

	resp, err := provider.Chat(ctx, preq)
	if err != nil {
		s.metrics.ChatRequests.WithLabelValues(provider.Name(), preq.Model, "error").Inc()
		s.logger.Error("chat failed", "provider", provider.Name(), "model", preq.Model, "error", err)
		observability.RecordSpanError(span, err)
		return nil, status.Errorf(codes.Internal, "chat: %v", err)
	}

	s.metrics.ChatRequests.WithLabelValues(provider.Name(), preq.Model, "success").Inc()
	if resp.Usage != nil {
		s.recordTokens(provider.Name(), preq.Model, resp.Usage)
	}
	return resp, nil
}

func (s *Service) ChatStream(req *api.ChatRequest, stream api.ModelServiceChatStreamServer) error {
	provider, preq, err := s.prepare(req)
	if err != nil {
		return err
	}

	// The stream context is cancelled when the caller disconnects, which
	// closes the upstream vendor call promptly.
	ctx, span := s.tracer.StartChatSpan(stream.Context(), provider.Name(), preq.Model)
	defer span.End()

	upstream, err := provider.ChatStream(ctx, preq)
	if err != nil {
		s.metrics.ChatRequests.WithLabelValues(provider.Name(), preq.Model, "error").Inc()
		s.logger.Error("chat stream failed", "provider", provider.Name(), "model", preq.Model, "error", err)
		observability.RecordSpanError(span, err)
		return status.Errorf(codes.Internal, "chat stream: %v", err)
	}

	for chunk := range upstream.Chunks() {
		if err := stream.Send(chunk); err != nil {
			s.metrics.ChatRequests.WithLabelValues(provider.Name(), preq.Model, "error").Inc()
			observability.RecordSpanError(span, err)
			return status.Errorf(codes.Internal, "chat stream send: %v", err)
		}
		if chunk.Usage != nil {
			s.recordTokens(provider.Name(), preq.Model, chunk.Usage)
		}
	}

	// A channel that closed without a clean end means the vendor stream
	// died mid-call. The truncation must reach the caller as a status,
	// not look like a completed response.
	if err := upstream.Err(); err != nil {
		s.metrics.ChatRequests.WithLabelValues(provider.Name(), preq.Model, "error").Inc()
		s.logger.Error("chat stream truncated", "provider", provider.Name(), "model", preq.Model, "error", err)
		observability.RecordSpanError(span, err)
		return status.Errorf(codes.Internal, "chat stream: %v", err)
	}

	s.metrics.ChatRequests.WithLabelValues(provider.Name(), preq.Model, "success").Inc()
	return nil
}

func (s *Service) ListModels(context.Context, *api.ListModelsRequest) (*api.ListModelsResponse, error) {
	return &api.ListModelsResponse{Models: s.resolver.ListModels()}, nil
}

func (s *Service) GetModelCapabilities(_ context.Context, req *api.GetModelCapabilitiesRequest) (*api.ModelInfo, error) {
	if req == nil || req.Model == "" {
		return nil, status.Error(codes.InvalidArgument, "model is required")
	}
	info, err := s.resolver.Capabilities(req.Model)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "%v", err)
	}
	return info, nil
}

func (s *Service) RegisterPrompt(_ context.Context, req *api.RegisterPromptRequest) (*api.Prompt, error) {
	if req == nil || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	prompt := s.prompts.Register(req.Name, req.Content, req.Metadata)
	s.logger.Info("registered prompt", "name", prompt.Name, "version", prompt.Version)
	return &prompt, nil
}

func (s *Service) GetPrompt(_ context.Context, req *api.GetPromptRequest) (*api.Prompt, error) {
	if req == nil || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	prompt, err := s.prompts.Get(req.Name, req.Version)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "%v", err)
	}
	return &prompt, nil
}

func (s *Service) ListPrompts(context.Context, *api.ListPromptsRequest) (*api.ListPromptsResponse, error) {
	return &api.ListPromptsResponse{Prompts: s.prompts.ListLatest()}, nil
}

func (s *Service) RegisterModel(_ context.Context, req *api.RegisterModelRequest) (*api.RegisteredModel, error) {
	if req == nil || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	model := s.registry.Register(req)
	s.logger.Info("registered model",
		"name", model.Name,
		"adapter_type", model.AdapterType,
		"provider", model.Provider,
	)
	return &model, nil
}

func (s *Service) ListRegisteredModels(context.Context, *api.ListRegisteredModelsRequest) (*api.ListRegisteredModelsResponse, error) {
	return &api.ListRegisteredModelsResponse{Models: s.registry.List()}, nil
}

func (s *Service) GetModelStatus(_ context.Context, req *api.GetModelStatusRequest) (*api.GetModelStatusResponse, error) {
	if req == nil || req.Model == "" {
		return nil, status.Error(codes.InvalidArgument, "model is required")
	}
	model, ok := s.registry.Get(req.Model)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "model %q is not registered", req.Model)
	}
	return &api.GetModelStatusResponse{Model: model.Name, Status: model.Status}, nil
}

func (s *Service) recordTokens(provider, model string, usage *api.TokenUsage) {
	s.metrics.ChatTokens.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
	s.metrics.ChatTokens.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
}
