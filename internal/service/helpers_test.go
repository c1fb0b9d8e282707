package service

import (
	"context"
)

// tableEmbedder returns a two-dimensional vector for every text, or err.
type tableEmbedder struct {
	err error
}

func (e *tableEmbedder) Name() string   { return "table" }
func (e *tableEmbedder) Dimension() int { return 2 }

func (e *tableEmbedder) Embed(context.Context, string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float64{1, 0}, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
