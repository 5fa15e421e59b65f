// Package models implements the model service: two-tier model name
// resolution over provider adapters and an explicit model registry, plus
// the append-only prompt registry.
package models

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/lattice/internal/models/providers"
	"github.com/haasonsaas/lattice/pkg/api"
)

// ErrNotFound is returned for unknown models, prompts, and prompt
// versions.
var ErrNotFound = errors.New("not found")

// Registration status lifecycle starts here; there is no health checker
// advancing it yet.
const statusProvisioning = "provisioning"

// defaults for sparse registrations.
const (
	defaultAdapterType = providers.TypeOpenAI
	defaultProvider    = "custom"
)

// ModelRegistry holds explicit model registrations. A registration
// shadows any provider model of the same name.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]api.RegisteredModel
	now    func() time.Time
}

// NewModelRegistry creates an empty model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]api.RegisteredModel),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register adds or replaces a registration, filling defaults for the
// adapter type, provider, and status.
func (r *ModelRegistry) Register(req *api.RegisterModelRequest) api.RegisteredModel {
	model := api.RegisteredModel{
		Name:         req.Name,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
		HealthCheck:  req.HealthCheck,
		AdapterType:  req.AdapterType,
		Provider:     req.Provider,
		Status:       statusProvisioning,
	}
	if model.AdapterType == "" {
		model.AdapterType = defaultAdapterType
	}
	if model.Provider == "" {
		model.Provider = defaultProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	model.RegisteredAt = r.now()
	r.models[model.Name] = model
	return model
}

// Get returns a registration by name.
func (r *ModelRegistry) Get(name string) (api.RegisteredModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// List returns all registrations sorted by name.
func (r *ModelRegistry) List() []api.RegisteredModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]api.RegisteredModel, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PromptRegistry is the append-only store of named system prompts.
// Versions per name are gapless, start at 1, and are never mutated.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string][]api.Prompt
	now     func() time.Time
}

// NewPromptRegistry creates an empty prompt registry.
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{
		prompts: make(map[string][]api.Prompt),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register appends a new version and returns the stored record.
func (r *PromptRegistry) Register(name, content string, metadata api.PromptMetadata) api.Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()

	prompt := api.Prompt{
		Name:      name,
		Version:   len(r.prompts[name]) + 1,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: r.now(),
	}
	r.prompts[name] = append(r.prompts[name], prompt)
	return prompt
}

// Get returns one version of a prompt. Version 0 (or negative) means the
// latest; explicit versions index 1-based into the append history.
func (r *PromptRegistry) Get(name string, version int) (api.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.prompts[name]
	if len(history) == 0 {
		return api.Prompt{}, fmt.Errorf("prompt %q: %w", name, ErrNotFound)
	}
	if version <= 0 {
		return history[len(history)-1], nil
	}
	if version > len(history) {
		return api.Prompt{}, fmt.Errorf("prompt %q version %d: %w", name, version, ErrNotFound)
	}
	return history[version-1], nil
}

// ListLatest returns the highest version of every known prompt, sorted by
// name.
func (r *PromptRegistry) ListLatest() []api.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.Prompt, 0, len(r.prompts))
	for _, history := range r.prompts {
		out = append(out, history[len(history)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
