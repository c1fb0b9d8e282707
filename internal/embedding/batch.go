package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"docchat/internal/domain"
)

// BatchOptions controls how EmbedAll spreads work over the embedding service.
type BatchOptions struct {
	BatchSize   int
	Concurrency int
}

// DefaultBatchOptions mirrors the OpenAI embedder defaults.
var DefaultBatchOptions = BatchOptions{BatchSize: 32, Concurrency: 4}

// EmbedAll embeds texts in batches, running up to opts.Concurrency batches at
// once. Vectors are written by input position, so the result is aligned with
// texts whatever order the batches complete in. The first failure cancels the
// batches still in flight.
func EmbedAll(ctx context.Context, e domain.Embedder, texts []string, opts BatchOptions) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchOptions.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	vectors := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < len(texts); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(texts))
		g.Go(func() error {
			out, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return wrap(err)
			}
			if len(out) != end-start {
				return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingService, len(out), end-start)
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func wrap(err error) error {
	if errors.Is(err, domain.ErrEmbeddingService) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
}
