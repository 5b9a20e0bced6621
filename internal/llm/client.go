// Package llm provides a client for an OpenAI-compatible chat completion
// endpoint. The default deployment points at Groq, which speaks the same
// wire protocol.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrRateLimited signals that the provider asked us to back off. Callers
// retry with increasing delay.
var ErrRateLimited = errors.New("rate limited")

// Chatter is the completion capability consumed by the generator and the
// reply classifier.
type Chatter interface {
	Chat(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Client wraps the go-openai client with the endpoint and model fixed at
// construction.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a client for the configured endpoint.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no completion API key configured: set GROQ_API_KEY")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// Chat sends a system+user message pair and returns the completion text.
// Provider rate limits are reported as ErrRateLimited.
func (c *Client) Chat(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		if isRateLimit(err) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "rate_limit") {
			return true
		}
	}
	return false
}
