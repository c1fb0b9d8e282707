package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/chunker"
	"docchat/internal/conversation"
	"docchat/internal/domain"
	"docchat/internal/embedding/tfidf"
	"docchat/internal/generation"
	"docchat/internal/summarizer"
	"docchat/internal/vectorstore"
	"docchat/internal/vectorstore/memory"
)

// recordingGenerator answers "answer N" and remembers every request.
type recordingGenerator struct {
	mu       sync.Mutex
	requests []domain.GenerationRequest
	err      error
}

func (g *recordingGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.requests = append(g.requests, req)
	return fmt.Sprintf("answer %d", len(g.requests)), nil
}

func (g *recordingGenerator) last() domain.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type brokenSearch struct{ *memory.Storage }

func (brokenSearch) Search(context.Context, []float64, int) ([]domain.SearchResult, error) {
	return nil, errors.New("connection reset")
}

func newState(t *testing.T, gen domain.Generator, opts ...Option) *SessionState {
	t.Helper()
	ch, err := chunker.NewRecursiveChunker(1000, 200, nil)
	require.NoError(t, err)
	s, err := NewSessionState(Dependencies{
		Chunker:    ch,
		Embedder:   tfidf.NewEmbedder(),
		Generator:  gen,
		Storage:    func() vectorstore.Storage { return memory.NewStorage() },
		Summarizer: summarizer.NewFrequency(),
	}, opts...)
	require.NoError(t, err)
	return s
}

func ingest(t *testing.T, s *SessionState, texts ...string) *domain.IngestReport {
	t.Helper()
	docs := make([]domain.Document, len(texts))
	for i, text := range texts {
		docs[i] = domain.Document{Name: fmt.Sprintf("doc%d.txt", i), Text: text}
	}
	report, err := s.ProcessDocuments(context.Background(), docs)
	require.NoError(t, err)
	return report
}

// zorbDocument is 2500 runes long with the only mention of zorb around
// rune 1100, inside the second segment and outside both overlaps.
func zorbDocument() string {
	return strings.Repeat("abcd ", 220) + "zorb is a rare mineral. " + strings.Repeat("abcd ", 275) + "x"
}

func TestNewSessionState_RequiresDependencies(t *testing.T) {
	_, err := NewSessionState(Dependencies{})
	assert.Error(t, err)
}

func TestProcessDocuments_ThreeSegmentsAndRetrieval(t *testing.T) {
	doc := zorbDocument()
	require.Len(t, []rune(doc), 2500)

	s := newState(t, generation.NewExtractive(summarizer.NewFrequency(), 1))
	assert.NotEmpty(t, s.ID())
	report := ingest(t, s, doc)
	assert.Equal(t, 3, report.Segments)
	assert.Equal(t, []string{"doc0.txt"}, report.Processed)
	assert.NotEmpty(t, report.Summary)
	assert.True(t, s.Ingested())

	answer, err := s.Ask(context.Background(), "What is zorb?")
	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, 1, answer.Sources[0].Segment.Index)
	assert.Contains(t, answer.Sources[0].Segment.Text, "zorb is a rare mineral.")
	assert.LessOrEqual(t, len(answer.Sources), DefaultTopK)
	assert.Contains(t, answer.Text, "zorb is a rare mineral.")
}

func TestProcessDocuments_SkipsEmptyDocument(t *testing.T) {
	s := newState(t, &recordingGenerator{})
	report, err := s.ProcessDocuments(context.Background(), []domain.Document{
		{Name: "a.pdf", Text: "Gophers dig tunnels under the garden."},
		{Name: "scanned.pdf", Text: "  \n "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, report.Processed)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "scanned.pdf", report.Skipped[0].Name)
	assert.Equal(t, 1, report.Segments)
	assert.True(t, s.Ingested())
}

func TestProcessDocuments_NoExtractableText(t *testing.T) {
	s := newState(t, &recordingGenerator{})
	report, err := s.ProcessDocuments(context.Background(), []domain.Document{{Name: "a", Text: " "}, {Name: "b"}})
	assert.ErrorIs(t, err, domain.ErrNoExtractableText)
	require.NotNil(t, report)
	assert.Len(t, report.Skipped, 2)
	assert.False(t, s.Ingested())

	_, err = s.ProcessDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoExtractableText)
}

func TestProcessDocuments_AlreadyIngested(t *testing.T) {
	s := newState(t, &recordingGenerator{})
	ingest(t, s, "first document")

	_, err := s.ProcessDocuments(context.Background(), []domain.Document{{Name: "b", Text: "second"}})
	assert.ErrorIs(t, err, domain.ErrAlreadyIngested)

	s.Reset()
	ingest(t, s, "second document")
}

func TestProcessDocuments_BuildFailureLeavesSessionEmpty(t *testing.T) {
	ch, err := chunker.NewRecursiveChunker(50, 10, nil)
	require.NoError(t, err)
	failing := &tableEmbedder{err: errors.New("quota exceeded")}
	s, err := NewSessionState(Dependencies{
		Chunker:   ch,
		Embedder:  failing,
		Generator: &recordingGenerator{},
		Storage:   func() vectorstore.Storage { return memory.NewStorage() },
	})
	require.NoError(t, err)

	_, err = s.ProcessDocuments(context.Background(), []domain.Document{{Name: "a", Text: "some text"}})
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.False(t, s.Ingested())
}

func TestAsk_BeforeIngest(t *testing.T) {
	s := newState(t, &recordingGenerator{})
	_, err := s.Ask(context.Background(), "What is X?")
	assert.ErrorIs(t, err, domain.ErrNoIndex)
	assert.Empty(t, s.History())
}

func TestAsk_EmptyQuestion(t *testing.T) {
	gen := &recordingGenerator{}
	s := newState(t, gen)
	ingest(t, s, "content")
	_, err := s.Ask(context.Background(), "  \t")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Empty(t, gen.requests)
}

func TestAsk_MemoryGrowsAndResets(t *testing.T) {
	gen := &recordingGenerator{}
	s := newState(t, gen)
	ingest(t, s, "Go has goroutines. Go has channels. Go has interfaces.")

	const n = 3
	for i := range n {
		answer, err := s.Ask(context.Background(), fmt.Sprintf("question %d about goroutines", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("answer %d", i+1), answer.Text)
		assert.Len(t, gen.last().History, 2*i, "full history is passed")
	}
	history := s.History()
	require.Len(t, history, 2*n)
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Text: "question 0 about goroutines"}, history[0])
	assert.Equal(t, domain.Turn{Role: domain.RoleAssistant, Text: "answer 3"}, history[5])

	s.Reset()
	assert.Empty(t, s.History())
	assert.False(t, s.Ingested())
	_, err := s.Ask(context.Background(), "anything?")
	assert.ErrorIs(t, err, domain.ErrNoIndex)
}

func TestAsk_WindowLimitsHistorySent(t *testing.T) {
	gen := &recordingGenerator{}
	s := newState(t, gen, WithWindow(conversation.Window{MaxTurns: 2}), WithTopK(1))
	ingest(t, s, "alpha beta gamma")

	for range 3 {
		_, err := s.Ask(context.Background(), "alpha?")
		require.NoError(t, err)
	}
	req := gen.last()
	require.Len(t, req.History, 2)
	assert.Equal(t, "answer 2", req.History[1].Text)
	assert.Len(t, req.Context, 1)
	assert.Len(t, s.History(), 6, "memory is never truncated")
}

func TestAsk_GenerationFailureAppendsNothing(t *testing.T) {
	gen := &recordingGenerator{}
	s := newState(t, gen)
	ingest(t, s, "some document text")
	_, err := s.Ask(context.Background(), "first?")
	require.NoError(t, err)

	gen.err = errors.New("rate limited")
	_, err = s.Ask(context.Background(), "second?")
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Len(t, s.History(), 2)
	assert.True(t, s.Ingested())
}

func TestAsk_RetrievalFailure(t *testing.T) {
	ch, err := chunker.NewRecursiveChunker(100, 0, nil)
	require.NoError(t, err)
	s, err := NewSessionState(Dependencies{
		Chunker:   ch,
		Embedder:  tfidf.NewEmbedder(),
		Generator: &recordingGenerator{},
		Storage:   func() vectorstore.Storage { return brokenSearch{memory.NewStorage()} },
	})
	require.NoError(t, err)
	ingest(t, s, "text to index")

	_, err = s.Ask(context.Background(), "text?")
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.Empty(t, s.History())
}

func TestAsk_ConcurrentCallsKeepPairs(t *testing.T) {
	gen := &recordingGenerator{}
	s := newState(t, gen)
	ingest(t, s, "shared document")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ask(context.Background(), fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history := s.History()
	require.Len(t, history, 40)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, domain.RoleUser, history[i].Role)
		assert.Equal(t, domain.RoleAssistant, history[i+1].Role)
	}
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}
	notes := write("notes.txt", []byte("The quick brown fox jumps over the lazy dog."))
	write("empty.txt", nil)
	write("image.bin", []byte{0x00, 0x01, 0x02})

	s := newState(t, &recordingGenerator{})
	report, err := s.IngestFiles(context.Background(), []string{
		filepath.Join(dir, "*.txt"),
		filepath.Join(dir, "image.bin"),
		filepath.Join(dir, "missing.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{notes}, report.Processed)

	var names []string
	for _, sk := range report.Skipped {
		names = append(names, filepath.Base(sk.Name))
	}
	assert.ElementsMatch(t, []string{"empty.txt", "image.bin", "missing.txt"}, names)
	assert.True(t, s.Ingested())
}
