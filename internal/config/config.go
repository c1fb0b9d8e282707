package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	BatchSize   int                   `yaml:"batch_size"`
	Concurrency int                   `yaml:"concurrency"`
	CacheSize   int                   `yaml:"cache_size"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how the combined document text is split.
type ChunkerConfig struct {
	ChunkSize  int      `yaml:"chunk_size"`
	Overlap    int      `yaml:"chunk_overlap"`
	Separators []string `yaml:"separators,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL              string `yaml:"url"`
	APIKeyEnv        string `yaml:"api_key_env"`
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// OpenAIGeneratorConfig configures the chat completion generator.
type OpenAIGeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens,omitempty"`
	MaxRetries  int    `yaml:"max_retries"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects the answer generator: "extractive" or "openai".
type GeneratorConfig struct {
	Type         string                 `yaml:"type"`
	Temperature  float64                `yaml:"temperature"`
	MaxSentences int                    `yaml:"max_sentences"`
	OpenAI       *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// RetrievalConfig controls how many passages are retrieved per question.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// MemoryConfig limits the history sent to the generator. Zero means unlimited.
type MemoryConfig struct {
	MaxTurns  int    `yaml:"max_turns"`
	MaxTokens int    `yaml:"max_tokens"`
	Encoding  string `yaml:"encoding,omitempty"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Memory      MemoryConfig      `yaml:"memory"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/docchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docchat", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf", BatchSize: 32, Concurrency: 4, CacheSize: 1024},
		Chunker:     ChunkerConfig{ChunkSize: 1000, Overlap: 200, Separators: []string{"\n\n", "\n", " ", ""}},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "extractive", Temperature: 0.7, MaxSentences: 3},
		Retrieval:   RetrievalConfig{TopK: 4},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Log:         LogConfig{Level: "info", Format: "json", File: "docchat.log"},
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		o := cfg.Generator.OpenAI
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.CollectionPrefix == "" {
			q.CollectionPrefix = "docchat"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
}

// Validate reports the first setting that cannot work.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "tfidf", "openai":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store type %q", c.VectorStore.Type)
	}
	switch c.Generator.Type {
	case "extractive", "openai":
	default:
		return fmt.Errorf("unknown generator type %q", c.Generator.Type)
	}
	switch c.Summarizer.Type {
	case "frequency":
	default:
		return fmt.Errorf("unknown summarizer type %q", c.Summarizer.Type)
	}
	if c.Summarizer.MaxSentences < 0 {
		return fmt.Errorf("summarizer.max_sentences must not be negative, got %d", c.Summarizer.MaxSentences)
	}
	if c.Chunker.ChunkSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size) and chunk_size positive, got %d/%d",
			c.Chunker.Overlap, c.Chunker.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Memory.MaxTurns < 0 || c.Memory.MaxTokens < 0 {
		return errors.New("memory limits must not be negative")
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return fmt.Errorf("generator.temperature must be in [0, 2], got %g", c.Generator.Temperature)
	}
	return nil
}

// Seconds converts a *_secs setting into a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }
