package vectorstore

import (
	"context"

	"docchat/internal/domain"
)

// Storage holds the vectors of one index and answers exact similarity search.
// Search results are ordered by descending cosine similarity with ties
// broken by ascending segment index.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, segments []domain.Segment, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
}

// Factory creates an empty Storage for a new index.
type Factory func() Storage
