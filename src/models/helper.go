package models

import (
	"context"
	"fmt"
	"strings"
)

// Providers lists the names accepted by NewLLMProvider.
var Providers = []string{"openai", "anthropic", "gemini", "ollama", "dummy"}

// NewLLMProvider returns a concrete Agent. Hosted providers fail with a
// *CredentialError when their API key is absent.
func NewLLMProvider(ctx context.Context, provider string, model string) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAILLM(model)
	case "gemini", "google":
		return NewGeminiLLM(ctx, model)
	case "ollama":
		return NewOllamaLLM(model)
	case "anthropic", "claude":
		return NewAnthropicLLM(model)
	case "dummy", "offline":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// SupportsTools reports whether provider can return structured tool calls.
func SupportsTools(provider string) bool {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "ollama":
		return false
	default:
		return true
	}
}

// Loader creates a fresh Agent per request so credential changes are observed
// without a restart.
type Loader func(ctx context.Context) (Agent, error)

// NewLoader binds provider and model into a Loader.
func NewLoader(provider, model string) Loader {
	return func(ctx context.Context) (Agent, error) {
		return NewLLMProvider(ctx, provider, model)
	}
}
