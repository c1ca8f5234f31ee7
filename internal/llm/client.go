// Package llm implements a thin client for OpenAI-compatible chat
// completion APIs, plus parsing of the structured verdict payload the
// analyst agents ask models to emit.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/alphamachine/engine/internal/errs"
)

// Client talks to a single LLM provider over its OpenAI-compatible
// chat completions endpoint.
type Client struct {
	provider    string
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// ClientConfig contains configuration for the LLM client
type ClientConfig struct {
	Provider       string
	Endpoint       string
	APIKey         string
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	RequestsPerMin int
}

// NewClient creates a new LLM client
func NewClient(config ClientConfig) *Client {
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerMin == 0 {
		config.RequestsPerMin = 60
	}

	return &Client{
		provider:    config.Provider,
		endpoint:    config.Endpoint,
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(config.RequestsPerMin)/60.0), config.RequestsPerMin),
	}
}

// Provider returns the provider name this client is bound to
func (c *Client) Provider() string {
	return c.provider
}

// Complete sends a chat completion request and returns the raw response.
// Failures carry an error kind so the retry and breaker layers can decide
// what to do: rate limits, 5xx and network errors are transient; auth and
// request errors are fatal for this provider.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	const op = "llm.complete"

	if !c.limiter.Allow() {
		return nil, errs.FromProvider(errs.KindTransient, op, c.provider,
			fmt.Errorf("local rate limit exhausted"))
	}

	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, c.provider,
			fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, c.provider,
			fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Debug().
		Str("provider", c.provider).
		Str("model", c.model).
		Int("message_count", len(messages)).
		Msg("Sending LLM request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.FromProvider(errs.KindTransient, op, c.provider,
			fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.FromProvider(errs.KindTransient, op, c.provider,
			fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(op, resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, c.provider,
			fmt.Errorf("failed to parse response: %w", err))
	}

	log.Debug().
		Str("provider", c.provider).
		Str("model", chatResp.Model).
		Int("prompt_tokens", chatResp.Usage.PromptTokens).
		Int("completion_tokens", chatResp.Usage.CompletionTokens).
		Dur("duration", duration).
		Msg("LLM request completed")

	return &chatResp, nil
}

// CompleteWithSystem sends a system + user message pair and returns the
// first choice's text content.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	resp, err := c.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errs.FromProvider(errs.KindFatal, "llm.complete", c.provider,
			fmt.Errorf("no choices in LLM response"))
	}

	return resp.Choices[0].Message.Content, nil
}

// statusError classifies a non-200 status into an error kind
func (c *Client) statusError(op string, status int, body []byte) error {
	var errResp ErrorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	kind := errs.KindFatal
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = errs.KindTransient
	}
	return errs.FromProvider(kind, op, c.provider,
		fmt.Errorf("LLM API error (status %d): %s", status, msg))
}
