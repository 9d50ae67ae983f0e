package provider

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/pkg/config"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
	anthropicVersion      = "2023-06-01"
)

type Anthropic struct {
	model     string
	maxTokens int
	c         *caller
}

func NewAnthropic(cfg config.ProviderConfig, logger *zap.Logger) *Anthropic {
	url := cfg.AnthropicURL
	if url == "" {
		url = defaultAnthropicURL
	}
	model := cfg.AnthropicModel
	if model == "" {
		model = defaultAnthropicModel
	}
	headers := map[string]string{
		"x-api-key":         cfg.AnthropicKey,
		"anthropic-version": anthropicVersion,
	}
	return &Anthropic{
		model:     model,
		maxTokens: maxTokens(cfg),
		c:         newCaller("anthropic", url, "content.0.text", headers, cfg.Timeout, logger),
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

func (a *Anthropic) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return a.c.post(ctx, anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
}

func maxTokens(cfg config.ProviderConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 1024
}
