package adapters

import (
	"fmt"
	"sort"
	"strings"

	"supplier-pricing/internal/types"
)

// Factory builds an adapter bound to one session
type Factory func(config *types.Config, settings types.SupplierSettings, driver types.PageDriver, logger types.Logger) types.SupplierAdapter

// Registry maps supplier names to adapter factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in suppliers
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("supplier1", func(c *types.Config, s types.SupplierSettings, d types.PageDriver, l types.Logger) types.SupplierAdapter {
		return NewSupplier1Adapter(c, s, d, l)
	})
	r.Register("supplier2", func(c *types.Config, s types.SupplierSettings, d types.PageDriver, l types.Logger) types.SupplierAdapter {
		return NewSupplier2Adapter(c, s, d, l)
	})
	r.Register("supplier3", func(c *types.Config, s types.SupplierSettings, d types.PageDriver, l types.Logger) types.SupplierAdapter {
		return NewSupplier3Adapter(c, s, d, l)
	})
	return r
}

// Register adds or replaces the factory for a supplier
func (r *Registry) Register(name string, factory Factory) {
	r.factories[strings.ToLower(name)] = factory
}

// New builds the adapter for a supplier
func (r *Registry) New(name string, config *types.Config, settings types.SupplierSettings, driver types.PageDriver, logger types.Logger) (types.SupplierAdapter, error) {
	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("no adapter found for supplier %q", name)
	}
	if settings.Name == "" {
		settings.Name = strings.ToLower(name)
	}
	return factory(config, settings, driver, logger), nil
}

// Names returns the registered supplier names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
