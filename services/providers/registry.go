package providers

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages adapter instances keyed by lowercase provider name.
// It is constructed once at startup and passed into the AI service, so
// tests can substitute fake adapters per case.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register registers an adapter instance
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	name := strings.ToLower(adapter.Name())
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.adapters[name] = adapter
	return nil
}

// Get retrieves an adapter by provider name (case-insensitive)
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[strings.ToLower(name)]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return adapter, nil
}

// Has reports whether a provider is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.adapters[strings.ToLower(name)]
	return exists
}

// List returns all registered provider names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}

	return names
}
