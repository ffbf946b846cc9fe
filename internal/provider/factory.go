// Package provider selects and builds the model gateway.
//
// # Adding a New Provider
//
// Implement domain.Provider in a subpackage and expose an explicit
// registration function:
//
//	func RegisterProviderFactory() {
//	    if registry.IsRegistered(ProviderType) {
//	        return
//	    }
//	    registry.RegisterFactory(registry.ProviderFactory{
//	        Type:        ProviderType,
//	        Description: "Google Gemini API provider",
//	        Create:      CreateFromConfig,
//	    })
//	}
//
// Then call it from internal/registration.
package provider

import (
	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/provider/registry"
)

// Re-export types from registry for convenience
type ProviderFactory = registry.ProviderFactory

// RegisterFactory registers a provider factory (delegated to registry).
var RegisterFactory = registry.RegisterFactory

// GetFactory returns the factory for a provider type (delegated to registry).
var GetFactory = registry.GetFactory

// ListFactories returns all registered provider factories (delegated to registry).
var ListFactories = registry.ListFactories

// ListProviderTypes returns all registered provider type names (delegated to registry).
var ListProviderTypes = registry.ListProviderTypes

// IsRegistered returns true if a provider type is registered (delegated to registry).
var IsRegistered = registry.IsRegistered

// ClearFactories removes all registered factories (for testing only).
var ClearFactories = registry.ClearFactories

// New builds the provider selected by cfg.Provider.
func New(cfg config.ModelConfig) (domain.Provider, error) {
	return registry.CreateFromFactory(cfg)
}
