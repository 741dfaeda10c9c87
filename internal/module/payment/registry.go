package payment

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderRegistry manages the wallet payment providers.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry(providers ...*Provider) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]*Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register registers a provider under its identifier.
func (r *ProviderRegistry) Register(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Identifier()] = p
}

// Get returns a provider by identifier. The notify path form
// "<identifier>_weapp-payment" is accepted too.
func (r *ProviderRegistry) Get(id string) (*Provider, error) {
	id = strings.TrimSuffix(id, "_"+hookSuffix)

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return p, nil
}

// Identifiers returns the registered identifiers in order.
func (r *ProviderRegistry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
