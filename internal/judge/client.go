// Package judge implements the advisory grading track: a rate-limited,
// batched remote judge with a deterministic rule-based fallback. Its results
// are informational only and never override the authoritative local score.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Judge sends one formatted prompt to the remote natural-language judge and
// returns its raw text reply. Implementations perform no retries of their
// own; all retry policy lives in the Controller.
type Judge interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// Client wraps an OpenAI-compatible API client as a Judge.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// DefaultTimeout bounds a single remote judge call.
const DefaultTimeout = 45 * time.Second

// NewClient creates a remote judge client.
func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		timeout: timeout,
	}
}

// Evaluate sends the prompt and returns the reply text. A timeout, transport
// error, empty choice list or blank reply all surface as errors; the caller
// treats them identically and falls back to local evaluation.
func (c *Client) Evaluate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", fmt.Errorf("judge API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("judge returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("judge returned empty reply")
	}
	slog.Debug("judge reply", "len", len(raw))
	return raw, nil
}

// Ping verifies the judge endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("judge endpoint unreachable: %w", err)
	}
	return nil
}
