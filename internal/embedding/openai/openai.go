package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docchat/internal/domain"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
// It does not retry; retry policy belongs to the caller.
type Client struct {
	client     *goopenai.Client
	model      string
	dimensions int

	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimensions int // requested output size; 0 keeps the model default
	Timeout    time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: t}
	return &Client{
		client:     goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		dimension:  cfg.Dimensions,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the vector size, known after the first response unless
// configured up front.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds all texts with a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", domain.ErrEmbeddingService, len(resp.Data), len(texts))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", domain.ErrEmbeddingService, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingService)
		}
		v := make([]float64, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float64(x)
		}
		out[d.Index] = v
	}
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(out[0])
	}
	c.mu.Unlock()
	return out, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", domain.ErrEmbeddingService, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
}

var _ domain.Embedder = (*Client)(nil)
