package domain

import "errors"

var (
	// ErrInvalidChunkParams is returned for a non-positive chunk size or an
	// overlap outside [0, chunkSize).
	ErrInvalidChunkParams = errors.New("invalid chunk parameters")

	// ErrEmptyInput is returned when an index is built from zero segments.
	ErrEmptyInput = errors.New("no segments to index")

	// ErrEmptyIndex is returned when querying an index that holds no segments.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrInvalidK is returned when a query asks for k <= 0 results.
	ErrInvalidK = errors.New("k must be positive")

	// ErrDimensionMismatch is returned when vectors of one index disagree in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingService wraps transport, auth and response failures of the embedding service.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrNoIndex is returned when a question is asked before any document was ingested.
	ErrNoIndex = errors.New("no documents have been ingested")

	// ErrRetrieval wraps embedding and index failures of the query step.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration wraps failures of the generation service.
	ErrGeneration = errors.New("generation failed")

	// ErrNoExtractableText is returned when none of the documents yielded text.
	ErrNoExtractableText = errors.New("no extractable text in documents")

	// ErrAlreadyIngested is returned when ingesting into a session that already has an index.
	ErrAlreadyIngested = errors.New("documents already ingested; reset the session first")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)
