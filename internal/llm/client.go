// Package llm adapts OpenAI chat models into the extraction collaborators
// that need language understanding: image text recognition and turning
// free-form recipe text into structured fields.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mealvault/mealvault/internal/extraction"
)

// Config holds configuration for OpenAI API usage.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for OpenAI-compatible gateways
	Model       string
	VisionModel string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns settings tuned for deterministic extraction.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		VisionModel: openai.GPT4o,
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
	}
}

// ChatCompleter is the part of the OpenAI client this package calls.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps a chat completer with timeouts, logging and error
// classification.
type Client struct {
	chat   ChatCompleter
	config Config
	logger *slog.Logger
}

// NewClient creates a client for the OpenAI API.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}
	return NewClientWith(openai.NewClientWithConfig(oc), config, logger), nil
}

// NewClientWith wraps an existing completer.
func NewClientWith(chat ChatCompleter, config Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.VisionModel == "" {
		config.VisionModel = defaults.VisionModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{chat: chat, config: config, logger: logger}
}

// complete sends one chat request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, model, purpose string, messages []openai.ChatCompletionMessage) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.chat.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:               model,
		Messages:            messages,
		Temperature:         c.config.Temperature,
		MaxCompletionTokens: c.config.MaxTokens,
		ResponseFormat:      &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	latency := time.Since(start)

	if err != nil {
		c.logger.Warn("openai call failed", "purpose", purpose, "model", model, "duration_ms", latency.Milliseconds(), "error", err)
		return "", classify(err)
	}
	c.logger.Debug("openai call complete",
		"purpose", purpose,
		"model", model,
		"duration_ms", latency.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 {
		return "", &extraction.Error{Kind: extraction.KindInsufficientData, Message: "no response from OpenAI"}
	}
	return stripFences(resp.Choices[0].Message.Content), nil
}

// classify maps API failures onto extraction kinds so callers can retry
// rate limits and timeouts.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &extraction.Error{Kind: extraction.KindTimeout, Message: "openai request timed out", Err: err}
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &extraction.Error{Kind: extraction.KindRateLimited, Message: "openai rate limit reached", RetryAfter: 20 * time.Second, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &extraction.Error{Kind: extraction.KindTimeout, Message: "openai request timed out", Err: err}
	case status == http.StatusBadRequest:
		return &extraction.Error{Kind: extraction.KindInvalidInput, Message: "openai rejected the request", Err: err}
	}
	return fmt.Errorf("OpenAI API call failed: %w", err)
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
