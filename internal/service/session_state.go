package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docchat/internal/conversation"
	"docchat/internal/domain"
	"docchat/internal/embedding"
	"docchat/internal/extract"
	"docchat/internal/vectorstore"
)

// Dependencies are the collaborators a SessionState is assembled from.
// Extractor and Summarizer are optional.
type Dependencies struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Generator  domain.Generator
	Storage    vectorstore.Factory
	Extractor  extract.Extractor
	Summarizer domain.Summarizer
}

type Option func(*SessionState)

func WithTopK(k int) Option {
	return func(s *SessionState) { s.retrieval.TopK = k }
}

func WithWindow(w conversation.Window) Option {
	return func(s *SessionState) { s.retrieval.Window = w }
}

func WithBatch(b embedding.BatchOptions) Option {
	return func(s *SessionState) { s.batch = b }
}

func WithSummarySentences(n int) Option {
	return func(s *SessionState) { s.summarySentences = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *SessionState) {
		if l != nil {
			s.logger = l
		}
	}
}

// SessionState is the lifecycle holder the UI talks to: ingest documents
// once, ask any number of questions, reset to start over.
type SessionState struct {
	id               string
	session          *RetrievalSession
	retrieval        RetrievalConfig
	chunker          domain.Chunker
	embedder         domain.Embedder
	storage          vectorstore.Factory
	extractor        extract.Extractor
	summarizer       domain.Summarizer
	summarySentences int
	batch            embedding.BatchOptions
	logger           *slog.Logger
}

func NewSessionState(deps Dependencies, opts ...Option) (*SessionState, error) {
	switch {
	case deps.Chunker == nil:
		return nil, errors.New("session: chunker is required")
	case deps.Embedder == nil:
		return nil, errors.New("session: embedder is required")
	case deps.Generator == nil:
		return nil, errors.New("session: generator is required")
	case deps.Storage == nil:
		return nil, errors.New("session: storage factory is required")
	}
	s := &SessionState{
		id:         uuid.NewString(),
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		storage:    deps.Storage,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		batch:      embedding.DefaultBatchOptions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	if s.extractor == nil {
		s.extractor = extract.NewRegistry(s.logger)
	}
	s.retrieval.Logger = s.logger
	s.session = NewRetrievalSession(deps.Generator, s.retrieval)
	return s, nil
}

func (s *SessionState) ID() string { return s.id }

// Ingested reports whether a queryable index exists.
func (s *SessionState) Ingested() bool { return s.session.Indexed() }

func (s *SessionState) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	return s.session.Ask(ctx, question)
}

func (s *SessionState) History() []domain.Turn { return s.session.History() }

// Reset discards the index and the conversation.
func (s *SessionState) Reset() {
	s.session.Reset()
	s.logger.Info("session reset")
}

// ProcessDocuments builds one index over the concatenation of all documents
// that carry text. Documents without text are reported as skipped. The
// report is returned together with ErrNoExtractableText so callers can show
// what was skipped.
func (s *SessionState) ProcessDocuments(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error) {
	if s.session.Indexed() {
		return nil, domain.ErrAlreadyIngested
	}

	report := &domain.IngestReport{}
	var combined strings.Builder
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			s.skip(report, d.Name, "no text could be extracted")
			continue
		}
		combined.WriteString(d.Text)
		combined.WriteString("\n\n")
		report.Processed = append(report.Processed, d.Name)
	}
	text := combined.String()
	if strings.TrimSpace(text) == "" {
		return report, domain.ErrNoExtractableText
	}

	segments, err := s.chunker.Chunk(text)
	if err != nil {
		return report, fmt.Errorf("chunk documents: %w", err)
	}
	if len(segments) == 0 {
		return report, domain.ErrNoExtractableText
	}

	embedder := s.embedder
	if p, ok := embedder.(domain.Preparer); ok {
		corpus := make([]string, len(segments))
		for i, seg := range segments {
			corpus[i] = seg.Text
		}
		if embedder, err = p.Prepare(corpus); err != nil {
			return report, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	ix, err := vectorstore.Build(ctx, s.storage(), segments, embedder, vectorstore.BuildOptions{
		Batch:  s.batch,
		Logger: s.logger,
	})
	if err != nil {
		return report, fmt.Errorf("build index: %w", err)
	}
	if err := s.session.install(ix, embedder); err != nil {
		if cerr := ix.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Warn("releasing unused index failed", "error", cerr)
		}
		return report, err
	}
	report.Segments = len(segments)

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(text, s.summarySentences)
		if err != nil {
			s.logger.Warn("summarizing documents failed", "error", err)
		} else {
			report.Summary = summary
		}
	}

	s.logger.Info("documents ingested",
		"processed", len(report.Processed),
		"skipped", len(report.Skipped),
		"segments", report.Segments,
		"embedder", embedder.Name(),
	)
	return report, nil
}

// IngestFiles reads and extracts every file matched by patterns and ingests
// the result. Files that cannot be read or extracted are skipped.
func (s *SessionState) IngestFiles(ctx context.Context, patterns []string) (*domain.IngestReport, error) {
	var (
		docs    []domain.Document
		skipped domain.IngestReport
	)
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			data, err := os.ReadFile(m)
			if err != nil {
				s.skip(&skipped, m, err.Error())
				continue
			}
			text, err := s.extractor.Extract(m, data)
			if err != nil {
				s.skip(&skipped, m, err.Error())
				continue
			}
			docs = append(docs, domain.Document{Name: m, Text: text})
		}
	}

	report, err := s.ProcessDocuments(ctx, docs)
	if report != nil {
		report.Skipped = append(skipped.Skipped, report.Skipped...)
	}
	return report, err
}

func (s *SessionState) skip(report *domain.IngestReport, name, reason string) {
	s.logger.Warn("document skipped", "name", name, "reason", reason)
	report.Skipped = append(report.Skipped, domain.ExtractionSkipped{Name: name, Reason: reason})
}
