package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/config"
)

// Request is a single completion request. The simulation only ever needs
// one system prompt and one user prompt per call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Provider produces a text completion for a request. Implementations are
// stateless; callers own retry and backoff semantics beyond transport-level
// retries.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config holds provider selection and credentials.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// LoadConfig loads provider configuration from the environment for the
// named provider.
func LoadConfig(provider string) Config {
	cfg := Config{Provider: strings.ToLower(provider)}
	switch cfg.Provider {
	case "xai":
		cfg.APIKey = config.GetEnv("XAI_API_KEY", "")
		cfg.Model = config.GetEnv("XAI_MODEL", "grok-beta")
	case "anthropic":
		cfg.APIKey = config.GetEnv("ANTHROPIC_API_KEY", "")
		cfg.Model = config.GetEnv("ANTHROPIC_MODEL", "claude-3-opus-20240229")
	case "openai":
		cfg.APIKey = config.GetEnv("OPENAI_API_KEY", "")
		cfg.Model = config.GetEnv("OPENAI_MODEL", "gpt-4")
	}
	cfg.APIURL = config.GetEnv("AI_API_URL", "")
	return cfg
}

// NewProvider builds a Provider from config.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key for provider %q", cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "xai":
		return NewXAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
