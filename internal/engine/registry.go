package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantfossa/flowsim/internal/domain"
)

// Builder validates the terms relevant to one contract type and returns its
// implementation. Validation failures must wrap domain.ErrConfiguration.
type Builder func(terms *domain.ContractTerms) (ContractType, error)

// Registry maps contract type tags to builders. The set of types is closed at
// startup but extensible by registering new tags. It is safe for concurrent
// use.
type Registry struct {
	builders map[string]Builder
	mu       sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under the given type tag, replacing any previous
// registration.
func (r *Registry) Register(tag string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[tag] = b
}

// Build constructs the contract type implementation for the terms' type tag.
func (r *Registry) Build(terms *domain.ContractTerms) (ContractType, error) {
	r.mu.RLock()
	b, ok := r.builders[terms.ContractType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: contract type %q: %w", terms.ContractType, domain.ErrConfiguration)
	}
	return b(terms)
}

// List returns the registered type tags in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.builders))
	for t := range r.builders {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// defaultRegistry holds the contract types registered at package init.
var defaultRegistry = NewRegistry()

// Register adds a builder to the default registry.
func Register(tag string, b Builder) {
	defaultRegistry.Register(tag, b)
}

// Types returns the type tags known to the default registry.
func Types() []string {
	return defaultRegistry.List()
}
