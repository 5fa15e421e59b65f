package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/haasonsaas/lattice/internal/models/providers"
	"github.com/haasonsaas/lattice/pkg/api"
)

// ErrNoProviders is returned when a chat request names no model and no
// adapter is configured to pick a default from.
var ErrNoProviders = errors.New("no provider adapters configured")

// Resolver answers "which adapter serves model X" by reconciling the
// explicit model registry against the configured provider adapters.
//
// Resolution is registry-first: an explicit registration binds the name to
// its adapter_type, and an unconfigured adapter_type is a dead end rather
// than a fallthrough to auto-discovery. Only names with no registration
// are scanned against the adapters' reported models, in configuration
// order.
type Resolver struct {
	ordered  []providers.Provider
	byType   map[string]providers.Provider
	registry *ModelRegistry
}

// NewResolver creates a resolver over adapters in configuration order.
func NewResolver(registry *ModelRegistry, ordered []providers.Provider) *Resolver {
	byType := make(map[string]providers.Provider, len(ordered))
	for _, p := range ordered {
		byType[p.Name()] = p
	}
	return &Resolver{ordered: ordered, byType: byType, registry: registry}
}

// Resolve returns the adapter serving a model name.
func (r *Resolver) Resolve(name string) (providers.Provider, error) {
	if reg, ok := r.registry.Get(name); ok {
		p, ok := r.byType[reg.AdapterType]
		if !ok {
			return nil, fmt.Errorf("model %q: adapter type %q is not configured: %w", name, reg.AdapterType, ErrNotFound)
		}
		return p, nil
	}

	for _, p := range r.ordered {
		for _, m := range p.SupportedModels() {
			if m.Name == name {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("model %q: %w", name, ErrNotFound)
}

// DefaultModel picks a model deterministically when the caller names
// none: the first model reported by the first configured adapter.
func (r *Resolver) DefaultModel() (string, error) {
	for _, p := range r.ordered {
		if supported := p.SupportedModels(); len(supported) > 0 {
			return supported[0].Name, nil
		}
	}
	return "", ErrNoProviders
}

// Capabilities reports one model's info, registry-first.
func (r *Resolver) Capabilities(name string) (*api.ModelInfo, error) {
	if reg, ok := r.registry.Get(name); ok {
		return &api.ModelInfo{
			Name:         reg.Name,
			Provider:     reg.Provider,
			Capabilities: reg.Capabilities,
		}, nil
	}
	for _, p := range r.ordered {
		for _, m := range p.SupportedModels() {
			if m.Name == name {
				info := m
				return &info, nil
			}
		}
	}
	return nil, fmt.Errorf("model %q: %w", name, ErrNotFound)
}

// ListModels merges adapter-discovered models with explicit
// registrations, de-duplicated by name with the registry winning. Output
// is sorted by name for stable listings.
func (r *Resolver) ListModels() []api.ModelInfo {
	merged := make(map[string]api.ModelInfo)
	for _, p := range r.ordered {
		for _, m := range p.SupportedModels() {
			if _, ok := merged[m.Name]; !ok {
				merged[m.Name] = m
			}
		}
	}
	for _, reg := range r.registry.List() {
		merged[reg.Name] = api.ModelInfo{
			Name:         reg.Name,
			Provider:     reg.Provider,
			Capabilities: reg.Capabilities,
		}
	}

	out := make([]api.ModelInfo, 0, len(merged))
	for _, m := range merged {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
