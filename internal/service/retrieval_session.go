package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"docchat/internal/conversation"
	"docchat/internal/domain"
	"docchat/internal/vectorstore"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 4

// RetrievalConfig tunes a RetrievalSession.
type RetrievalConfig struct {
	TopK   int
	Window conversation.Window
	Logger *slog.Logger
}

// RetrievalSession owns one index and one conversation memory and answers
// questions against them. A session is either empty or indexed; the index,
// the embedder fitted for it and the memory are replaced or cleared together
// under one lock, which also serialises Ask.
type RetrievalSession struct {
	mu        sync.Mutex
	index     *vectorstore.Index
	embedder  domain.Embedder
	memory    *conversation.Memory
	generator domain.Generator
	topK      int
	window    conversation.Window
	logger    *slog.Logger
}

func NewRetrievalSession(generator domain.Generator, cfg RetrievalConfig) *RetrievalSession {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalSession{
		memory:    conversation.NewMemory(),
		generator: generator,
		topK:      topK,
		window:    cfg.Window,
		logger:    logger,
	}
}

// Indexed reports whether documents have been ingested.
func (s *RetrievalSession) Indexed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil
}

// install makes ix queryable. It refuses to replace an existing index.
func (s *RetrievalSession) install(ix *vectorstore.Index, embedder domain.Embedder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return domain.ErrAlreadyIngested
	}
	s.index = ix
	s.embedder = embedder
	return nil
}

// Ask retrieves context for question, generates an answer and records the
// exchange. On any error the memory is left as it was.
func (s *RetrievalSession) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil, domain.ErrNoIndex
	}

	start := time.Now()
	sources, err := s.index.Query(ctx, question, s.topK, s.embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	history := s.window.Apply(s.memory.Turns())
	text, err := s.generator.Generate(ctx, domain.GenerationRequest{
		Context:  sources,
		History:  history,
		Question: question,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	s.memory.AppendExchange(question, text)
	s.logger.Info("question answered",
		"sources", len(sources),
		"history_turns", len(history),
		"elapsed", time.Since(start),
	)
	return &domain.Answer{Text: text, Sources: sources}, nil
}

// History returns the conversation so far, oldest first.
func (s *RetrievalSession) History() []domain.Turn {
	return s.memory.Turns()
}

// Reset drops the index and clears the memory. It waits for an in-flight Ask.
func (s *RetrievalSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.index.Close(ctx); err != nil {
			s.logger.Warn("releasing index storage failed", "error", err)
		}
		cancel()
	}
	s.index = nil
	s.embedder = nil
	s.memory.Reset()
}
