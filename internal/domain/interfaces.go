package domain

import "context"

// Document is the extracted text of a single uploaded file.
type Document struct {
	Name string
	Text string
}

// Segment is a contiguous slice of the combined source text produced by the chunker.
type Segment struct {
	Text   string
	Index  int // position among the segments of one ingestion
	Offset int // rune offset of the segment start in the source text
}

// SearchResult is a segment matched by a query together with its similarity.
type SearchResult struct {
	Segment Segment
	Score   float64
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance of the conversation history.
type Turn struct {
	Role Role
	Text string
}

// Answer is the result of a successful question turn.
type Answer struct {
	Text    string
	Sources []SearchResult
}

// ExtractionSkipped records a file that contributed no text to an ingestion.
type ExtractionSkipped struct {
	Name   string
	Reason string
}

// IngestReport summarises a successful ingestion.
type IngestReport struct {
	Processed []string
	Skipped   []ExtractionSkipped
	Segments  int
	Summary   string
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Preparer is implemented by embedders that must be fitted to a corpus
// before use. Prepare returns a fitted copy and leaves the receiver untouched.
type Preparer interface {
	Prepare(corpus []string) (Embedder, error)
}

// Chunker splits text into bounded, overlapping segments.
type Chunker interface {
	Chunk(text string) ([]Segment, error)
}

// GenerationRequest carries everything a generator needs for one answer.
type GenerationRequest struct {
	Context  []SearchResult
	History  []Turn
	Question string
}

// Generator produces an answer from retrieved context and conversation history.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
