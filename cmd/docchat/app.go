package main

import (
	"fmt"
	"log/slog"
	"os"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/conversation"
	"docchat/internal/domain"
	"docchat/internal/embedding"
	embopenai "docchat/internal/embedding/openai"
	"docchat/internal/embedding/tfidf"
	"docchat/internal/extract"
	"docchat/internal/generation"
	genopenai "docchat/internal/generation/openai"
	"docchat/internal/service"
	"docchat/internal/summarizer"
	"docchat/internal/vectorstore"
	"docchat/internal/vectorstore/memory"
	"docchat/internal/vectorstore/qdrant"
)

// newSession assembles a SessionState from the application config.
func newSession(cfg *config.AppConfig, logger *slog.Logger) (*service.SessionState, error) {
	ch, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap, cfg.Chunker.Separators)
	if err != nil {
		return nil, err
	}

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	if cfg.Embedder.CacheSize > 0 {
		emb = embedding.NewCached(emb, cfg.Embedder.CacheSize)
	}

	storage, err := newStorage(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	sum, err := newSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(cfg.Generator, sum, logger)
	if err != nil {
		return nil, err
	}

	window, err := newWindow(cfg.Memory)
	if err != nil {
		return nil, err
	}

	return service.NewSessionState(service.Dependencies{
		Chunker:    ch,
		Embedder:   emb,
		Generator:  gen,
		Storage:    storage,
		Extractor:  extract.NewRegistry(logger),
		Summarizer: sum,
	},
		service.WithTopK(cfg.Retrieval.TopK),
		service.WithWindow(window),
		service.WithBatch(embedding.BatchOptions{BatchSize: cfg.Embedder.BatchSize, Concurrency: cfg.Embedder.Concurrency}),
		service.WithSummarySentences(cfg.Summarizer.MaxSentences),
		service.WithLogger(logger),
	)
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    config.Seconds(cfg.OpenAI.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newStorage(cfg config.VectorStoreConfig) (vectorstore.Factory, error) {
	switch cfg.Type {
	case "memory", "":
		return func() vectorstore.Storage { return memory.NewStorage() }, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		qcfg := qdrant.Config{
			URL:              cfg.Qdrant.URL,
			CollectionPrefix: cfg.Qdrant.CollectionPrefix,
			Timeout:          config.Seconds(cfg.Qdrant.TimeoutSecs),
		}
		if cfg.Qdrant.APIKeyEnv != "" {
			qcfg.APIKey = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return func() vectorstore.Storage { return qdrant.NewStorage(qcfg) }, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig, ranker generation.Ranker, logger *slog.Logger) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return generation.NewExtractive(ranker, cfg.MaxSentences), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai generator config missing")
		}
		client, err := genopenai.NewClient(genopenai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			MaxRetries:  cfg.OpenAI.MaxRetries,
			Timeout:     config.Seconds(cfg.OpenAI.TimeoutSecs),
		}, genopenai.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

// newSummarizer returns the summarizer, which also ranks sentences for the
// extractive generator.
func newSummarizer(cfg config.SummarizerConfig) (*summarizer.Frequency, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequency(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}

func newWindow(cfg config.MemoryConfig) (conversation.Window, error) {
	w := conversation.Window{MaxTurns: cfg.MaxTurns, MaxTokens: cfg.MaxTokens}
	if cfg.MaxTokens > 0 {
		counter, err := conversation.NewTiktokenCounter(cfg.Encoding)
		if err != nil {
			return w, err
		}
		w.Counter = counter
	}
	return w, nil
}
