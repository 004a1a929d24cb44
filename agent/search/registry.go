// Package search fans one preference query out across every registered
// product provider and collects the settled outcome. A slow or broken
// provider degrades its own slice of the results and nothing else.
package search

import (
	"fmt"
	"sort"

	"github.com/okaimono/shopping-agent/agent/contract"
)

// Registry holds the provider set in registration order. Registration
// happens during startup wiring; the registry is read-only afterwards.
type Registry struct {
	order   []string
	clients map[string]contract.ProviderClient
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]contract.ProviderClient)}
}

func (r *Registry) Register(c contract.ProviderClient) error {
	if c == nil {
		return fmt.Errorf("%w: nil provider client", contract.ErrValidation)
	}
	name := c.Name()
	if name == "" {
		return fmt.Errorf("%w: provider name is empty", contract.ErrValidation)
	}
	if _, dup := r.clients[name]; dup {
		return fmt.Errorf("%w: provider %q registered twice", contract.ErrValidation, name)
	}
	r.clients[name] = c
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) (contract.ProviderClient, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Order returns provider names in registration order. The aggregator uses
// this as the deterministic tie-break between providers.
func (r *Registry) Order() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int { return len(r.order) }

// Names returns a sorted copy, for logging.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
