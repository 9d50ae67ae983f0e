// Package provider calls the hosted text-generation APIs used by the assist
// features.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"gigmarket/pkg/apperror"
	"gigmarket/pkg/circuitbreaker"
	"gigmarket/pkg/config"
	"gigmarket/pkg/metrics"
)

// Provider produces a completion for prompt under systemPrompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// New builds the provider named in cfg; anthropic is the default.
func New(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Name {
	case "", "anthropic":
		return NewAnthropic(cfg, logger), nil
	case "openai":
		return NewOpenAI(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// caller posts JSON and extracts one field of the response with a gjson
// path.
type caller struct {
	name       string
	url        string
	headers    map[string]string
	textPath   string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func newCaller(name, url, textPath string, headers map[string]string, timeout time.Duration, logger *zap.Logger) *caller {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &caller{
		name:       name,
		url:        url,
		headers:    headers,
		textPath:   textPath,
		timeout:    timeout,
		httpClient: &http.Client{},
		breaker:    circuitbreaker.NewCircuitBreaker(name, circuitbreaker.DefaultConfig(), logger),
		logger:     logger,
	}
}

func (c *caller) post(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperror.Internal("failed to encode provider request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		status int
		text   string
	)
	start := time.Now()
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("%s returned %d: %s", c.name, status, gjson.GetBytes(raw, "error.message").String())
		}
		res := gjson.GetBytes(raw, c.textPath)
		if !res.Exists() {
			return fmt.Errorf("%s response has no %s", c.name, c.textPath)
		}
		text = res.String()
		return nil
	})
	metrics.RecordExternalCallLatency(c.name, "complete", strconv.Itoa(status), time.Since(start))

	if err != nil {
		c.logger.Warn("Provider call failed",
			zap.String("provider", c.name),
			zap.Int("status", status),
			zap.Error(err),
		)
		return "", apperror.ServiceUnavailable("AI service temporarily unavailable", err)
	}
	return text, nil
}
