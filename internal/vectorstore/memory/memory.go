package memory

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"sync"

	"docchat/internal/domain"
)

// Storage is an in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	norms     []float64
	segments  []domain.Segment
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.norms = nil
	s.segments = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, segments []domain.Segment, vectors [][]float64) error {
	if len(segments) != len(vectors) {
		return errors.New("segments and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return domain.ErrDimensionMismatch
		}
	}
	for i, v := range vectors {
		vec := make([]float64, len(v))
		copy(vec, v)
		s.vectors = append(s.vectors, vec)
		s.norms = append(s.norms, norm(vec))
		s.segments = append(s.segments, segments[i])
	}
	return nil
}

// Search scans every stored vector. Ties keep insertion order.
func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if topK <= 0 {
		return nil, domain.ErrInvalidK
	}
	qn := norm(vector)
	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{
			Segment: s.segments[i],
			Score:   cosine(s.vectors[i], s.norms[i], vector, qn),
		}
	}
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.norms = nil
	s.segments = nil
	return nil
}

// Len returns the number of stored vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// cosine is zero when either vector is zero.
func cosine(a []float64, an float64, b []float64, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (an * bn)
}
