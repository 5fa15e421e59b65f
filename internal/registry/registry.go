// Package registry is the gateway's in-memory directory of backend
// services and workflow handlers. Registrations live for the process
// lifetime; there is no removal.
package registry

import (
	"errors"
	"sync"
)

// ErrNotRegistered is returned when a name or path has no registrations.
var ErrNotRegistered = errors.New("not registered")

// Registry maps logical service names and workflow API paths to ordered
// address lists. The first address for a name is authoritative; additional
// addresses are recorded but never used (no failover, no balancing).
type Registry struct {
	mu        sync.RWMutex
	services  map[string][]string
	workflows map[string][]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		services:  make(map[string][]string),
		workflows: make(map[string][]string),
	}
}

// RegisterService appends an address for a service name. Registering the
// same address twice is a no-op.
func (r *Registry) RegisterService(name, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = appendUnique(r.services[name], addr)
}

// RegisterWorkflow appends an address for a workflow API path.
func (r *Registry) RegisterWorkflow(apiPath, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[apiPath] = appendUnique(r.workflows[apiPath], addr)
}

// ResolveService returns the authoritative address for a service name.
func (r *Registry) ResolveService(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return first(r.services[name])
}

// ResolveWorkflow returns the authoritative address for a workflow path.
func (r *Registry) ResolveWorkflow(apiPath string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return first(r.workflows[apiPath])
}

// Services returns the registered service names, for logging at startup.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}

func appendUnique(addrs []string, addr string) []string {
	for _, a := range addrs {
		if a == addr {
			return addrs
		}
	}
	return append(addrs, addr)
}

func first(addrs []string) (string, error) {
	if len(addrs) == 0 {
		return "", ErrNotRegistered
	}
	return addrs[0], nil
}
