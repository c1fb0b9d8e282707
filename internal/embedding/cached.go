package embedding

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/golang/groupcache/lru"

	"docchat/internal/domain"
)

// Cached memoises vectors of an underlying embedder in a bounded LRU.
// Embedding is pure for a fixed model, so a hit is indistinguishable from a
// fresh call. Callers get their own copy of every cached vector.
type Cached struct {
	next  domain.Embedder
	mu    sync.Mutex
	cache *lru.Cache
}

// NewCached wraps next with an LRU of at most maxEntries vectors.
func NewCached(next domain.Embedder, maxEntries int) *Cached {
	return &Cached{next: next, cache: lru.New(maxEntries)}
}

func (c *Cached) Name() string   { return c.next.Name() }
func (c *Cached) Dimension() int { return c.next.Dimension() }

// Prepare fits the wrapped embedder, if it needs fitting, and wraps the
// result in a fresh cache.
func (c *Cached) Prepare(corpus []string) (domain.Embedder, error) {
	p, ok := c.next.(domain.Preparer)
	if !ok {
		return c, nil
	}
	fitted, err := p.Prepare(corpus)
	if err != nil {
		return nil, err
	}
	return NewCached(fitted, c.cache.MaxEntries), nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.get(text); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.add(text, v)
	return v, nil
}

// EmbedBatch only forwards the texts that miss the cache.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := c.get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vectors, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingService, len(vectors), len(missing))
	}
	for j, v := range vectors {
		out[missingIdx[j]] = v
		c.add(missing[j], v)
	}
	return out, nil
}

func (c *Cached) get(text string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(text)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]float64)), true
}

func (c *Cached) add(text string, v []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(text, slices.Clone(v))
}
