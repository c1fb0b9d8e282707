package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docchat/internal/domain"
	"docchat/internal/embedding"
)

// Index is a fully built, queryable collection of embedded segments.
// The zero value and New without Build are empty and reject queries.
type Index struct {
	storage   Storage
	size      int
	dimension int
}

// New returns an empty index over storage.
func New(storage Storage) *Index {
	return &Index{storage: storage}
}

// BuildOptions tune how segments are embedded during Build.
type BuildOptions struct {
	Batch  embedding.BatchOptions
	Logger *slog.Logger
}

// Build embeds every segment and loads the vectors into storage. Either the
// whole index is built or an error is returned and storage is cleared.
func Build(ctx context.Context, storage Storage, segments []domain.Segment, embedder domain.Embedder, opts BuildOptions) (*Index, error) {
	if len(segments) == 0 {
		return nil, domain.ErrEmptyInput
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	vectors, err := embedding.EmbedAll(ctx, embedder, texts, opts.Batch)
	if err != nil {
		return nil, err
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty vector for segment 0", domain.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: segment %d has %d dimensions, want %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	if err := storage.Init(ctx, dim); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := storage.Upsert(ctx, segments, vectors); err != nil {
		if cerr := storage.Clear(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("clearing partially built index failed", "error", cerr)
		}
		return nil, fmt.Errorf("upsert vectors: %w", err)
	}
	logger.Info("index built", "segments", len(segments), "dimension", dim, "embedder", embedder.Name())
	return &Index{storage: storage, size: len(segments), dimension: dim}, nil
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

// Dimension returns the vector dimensionality shared by all segments.
func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dimension
}

// Query embeds text and returns up to k nearest segments, best first.
func (ix *Index) Query(ctx context.Context, text string, k int, embedder domain.Embedder) ([]domain.SearchResult, error) {
	if ix.Len() == 0 || ix.storage == nil {
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidK, k)
	}
	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return nil, err
	}
	if len(vec) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(vec), ix.dimension)
	}
	return ix.storage.Search(ctx, vec, min(k, ix.size))
}

// Close releases the storage backing the index.
func (ix *Index) Close(ctx context.Context) error {
	if ix == nil || ix.storage == nil {
		return nil
	}
	return ix.storage.Clear(ctx)
}
