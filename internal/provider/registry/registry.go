// Package registry provides model provider factory registration and lookup.
//
// Each provider package exposes a RegisterProviderFactory function that
// registers itself here; internal/registration calls them explicitly so
// there are no init() side effects.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
)

// ProviderFactory defines how to create a provider of a specific type.
type ProviderFactory struct {
	// Type is the value of model.provider that selects this factory
	// (e.g., "ollama", "openai", "anthropic").
	Type string

	// Description provides a human-readable description of the provider.
	Description string

	// Create instantiates a provider from the model configuration.
	Create func(cfg config.ModelConfig) (domain.Provider, error)

	// ValidateConfig performs provider-specific validation. Optional.
	ValidateConfig func(cfg config.ModelConfig) error
}

var (
	factoryMu   sync.RWMutex
	factoryMap  = make(map[string]ProviderFactory)
	factoryList []ProviderFactory
)

// RegisterFactory registers a provider factory. It panics on an empty type,
// a missing Create function, or a duplicate registration.
func RegisterFactory(f ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
	factoryList = append(factoryList, f)
}

// GetFactory returns the factory for a provider type, if registered.
func GetFactory(providerType string) (ProviderFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[providerType]
	return f, ok
}

// ListFactories returns all registered provider factories sorted by type.
func ListFactories() []ProviderFactory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]ProviderFactory, len(factoryList))
	copy(result, factoryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// ListProviderTypes returns all registered provider type names.
func ListProviderTypes() []string {
	factories := ListFactories()
	types := make([]string, len(factories))
	for i, f := range factories {
		types[i] = f.Type
	}
	return types
}

// IsRegistered reports whether a provider type is registered.
func IsRegistered(providerType string) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// CreateFromFactory validates cfg and creates the provider it selects.
func CreateFromFactory(cfg config.ModelConfig) (domain.Provider, error) {
	f, ok := GetFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Provider, ListProviderTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration for provider type %s: %w", cfg.Provider, err)
		}
	}

	return f.Create(cfg)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]ProviderFactory)
	factoryList = nil
}
