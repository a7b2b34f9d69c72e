package ai

import (
	"context"
	"fmt"
	"strings"
)

// CompletionRequest is a single chat completion call to a provider.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completion is a provider response with its reported token usage.
// TokensConsumed is zero when the provider did not report usage.
type Completion struct {
	Text           string
	TokensConsumed int
	FinishReason   string
}

// ChatCompleter issues one chat completion. Implementations wrap a concrete
// provider (OpenAI-compatible API, Ollama) and report usage when available.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Provider kinds selectable from configuration.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ProviderConfig selects and configures a concrete provider.
type ProviderConfig struct {
	Kind    string
	APIKey  string
	BaseURL string
	Model   string
}

// NewProvider builds the ChatCompleter named by cfg.Kind.
func NewProvider(cfg ProviderConfig) (ChatCompleter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.Model) == "" {
			return nil, fmt.Errorf("openai provider requires a model")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case ProviderOllama:
		if strings.TrimSpace(cfg.Model) == "" {
			return nil, fmt.Errorf("ollama provider requires a model")
		}
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
