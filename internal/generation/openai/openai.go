// Package openai generates answers with an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"docchat/internal/conversation"
	"docchat/internal/domain"
	"docchat/internal/generation"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second
)

// ErrAPIKeyNotSet is returned when the configured key variable is empty.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
}

// Client is a domain.Generator backed by the chat completions endpoint.
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient reads the API key from the environment variable named in cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", ErrAPIKeyNotSet, keyEnv)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &Client{
		client:      openai.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      slog.Default(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate sends the system prompt with the retrieved context, the history
// and the question as one chat completion request.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(generation.SystemPrompt(req.Context)),
	}
	for _, m := range conversation.Messages(req.History) {
		if m.Role == domain.RoleUser {
			messages = append(messages, openai.UserMessage(m.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Question))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion returned status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("chat completion returned an empty message")
	}
	c.logger.Debug("chat completion",
		"model", completion.Model,
		"tokens", completion.Usage.TotalTokens,
		"history", len(req.History),
		"elapsed", time.Since(start),
	)
	return answer, nil
}

var _ domain.Generator = (*Client)(nil)
