package llm

import (
	"context"
	"strings"
)

// XAIProvider talks to api.x.ai, which speaks the Anthropic messages wire
// format.
type XAIProvider struct {
	anthropic *AnthropicProvider
}

func NewXAIProvider(cfg Config) *XAIProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = "https://api.x.ai"
	}
	if cfgCopy.Model == "" {
		cfgCopy.Model = "grok-beta"
	}
	return &XAIProvider{
		anthropic: NewAnthropicProvider(cfgCopy),
	}
}

func (p *XAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	return p.anthropic.Complete(ctx, req)
}
