// Package registration wires the built-in model providers into the
// provider registry.
package registration

import (
	"github.com/tjfontaine/mcp-chat/internal/provider/anthropic"
	"github.com/tjfontaine/mcp-chat/internal/provider/ollama"
	"github.com/tjfontaine/mcp-chat/internal/provider/openai"
)

// RegisterBuiltins registers built-in providers explicitly. It is safe to
// call more than once and is intended for cmd/ entry points and tests.
func RegisterBuiltins() {
	ollama.RegisterProviderFactory()
	openai.RegisterProviderFactory()
	anthropic.RegisterProviderFactory()
}
