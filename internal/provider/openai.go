package provider

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/pkg/config"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4"
)

type OpenAI struct {
	model     string
	maxTokens int
	c         *caller
}

func NewOpenAI(cfg config.ProviderConfig, logger *zap.Logger) *OpenAI {
	url := cfg.OpenAIURL
	if url == "" {
		url = defaultOpenAIURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = defaultOpenAIModel
	}
	headers := map[string]string{"Authorization": "Bearer " + cfg.OpenAIKey}
	return &OpenAI{
		model:     model,
		maxTokens: maxTokens(cfg),
		c:         newCaller("openai", url, "choices.0.message.content", headers, cfg.Timeout, logger),
	}
}

func (o *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (o *OpenAI) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return o.c.post(ctx, chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   o.maxTokens,
		Temperature: 0.7,
	})
}
