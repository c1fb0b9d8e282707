package qdrant

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"docchat/internal/domain"
)

// Storage is a minimal REST client to Qdrant. Every Storage owns its own
// collection, created on Init and dropped on Clear, and always requests
// exact (non-HNSW) search.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL              string
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

// NewStorage returns a Storage bound to a fresh collection name.
func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "docchat"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: prefix + "-" + uuid.NewString(),
		client:     &http.Client{Timeout: timeout},
	}
}

// Collection returns the name of the collection backing this storage.
func (s *Storage) Collection() string { return s.collection }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

func (s *Storage) Upsert(ctx context.Context, segments []domain.Segment, vectors [][]float64) error {
	if len(segments) != len(vectors) {
		return errors.New("segments and vectors length mismatch")
	}
	points := make([]map[string]any, len(segments))
	for i := range segments {
		if len(vectors[i]) != s.dimension {
			return domain.ErrDimensionMismatch
		}
		points[i] = map[string]any{
			"id":     segments[i].Index,
			"vector": vectors[i],
			"payload": map[string]any{
				"index":  segments[i].Index,
				"offset": segments[i].Offset,
				"text":   segments[i].Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload struct {
			Index  int    `json:"index"`
			Offset int    `json:"offset"`
			Text   string `json:"text"`
		} `json:"payload"`
	} `json:"result"`
}

// tieSlack is how many results past topK are fetched so that scores tied
// with the k-th result can be ordered by segment index before trimming.
const tieSlack = 4

// Search asks Qdrant for an exact scan and re-sorts so equal scores come
// back in segment order. When the fetched page ends inside a run of scores
// equal to the k-th one, the page is widened until the run is complete.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidK
	}
	limit := topK + tieSlack
	for {
		results, err := s.search(ctx, vector, limit)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.Segment.Index, b.Segment.Index)
		})
		if len(results) <= topK {
			return results, nil
		}
		if len(results) < limit || results[len(results)-1].Score != results[topK-1].Score {
			return results[:topK], nil
		}
		limit *= 2
	}
}

func (s *Storage) search(ctx context.Context, vector []float64, limit int) ([]domain.SearchResult, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"params":       map[string]any{"exact": true},
	}
	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			Segment: domain.Segment{Text: r.Payload.Text, Index: r.Payload.Index, Offset: r.Payload.Offset},
			Score:   r.Score,
		})
	}
	return results, nil
}

// Clear drops the collection.
func (s *Storage) Clear(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
