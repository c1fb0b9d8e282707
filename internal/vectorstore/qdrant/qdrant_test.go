package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

// fakeQdrant records requests and answers searches with a canned result.
type fakeQdrant struct {
	mu       sync.Mutex
	requests []string
	search   map[string]any
	points   []any
	result   []map[string]any
	limits   []int
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("api-key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/points/search"):
		_ = json.NewDecoder(r.Body).Decode(&f.search)
		limit := len(f.result)
		if l, ok := f.search["limit"].(float64); ok {
			limit = min(limit, int(l))
			f.limits = append(f.limits, int(l))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": f.result[:limit]})
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/points"):
		var body struct {
			Points []any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = body.Points
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	default:
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func newTestStorage(t *testing.T, f *fakeQdrant) *Storage {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL, APIKey: "secret", CollectionPrefix: "test"})
}

func TestNewStorage_UniqueCollections(t *testing.T) {
	a := NewStorage(Config{URL: "http://localhost:6333"})
	b := NewStorage(Config{URL: "http://localhost:6333"})
	assert.NotEqual(t, a.Collection(), b.Collection())
	assert.True(t, strings.HasPrefix(a.Collection(), "docchat-"))
}

func TestStorage_Lifecycle(t *testing.T) {
	f := &fakeQdrant{
		result: []map[string]any{
			{"score": 0.5, "payload": map[string]any{"index": 2, "offset": 40, "text": "c"}},
			{"score": 0.9, "payload": map[string]any{"index": 1, "offset": 20, "text": "b"}},
			{"score": 0.5, "payload": map[string]any{"index": 0, "offset": 0, "text": "a"}},
		},
	}
	s := newTestStorage(t, f)
	ctx := context.Background()

	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx,
		[]domain.Segment{{Text: "a", Index: 0}, {Text: "b", Index: 1, Offset: 20}, {Text: "c", Index: 2, Offset: 40}},
		[][]float64{{1, 0}, {0, 1}, {1, 1}},
	))
	f.mu.Lock()
	assert.Len(t, f.points, 3)
	f.mu.Unlock()

	res, err := s.Search(ctx, []float64{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{1, 0, 2}, []int{res[0].Segment.Index, res[1].Segment.Index, res[2].Segment.Index})
	assert.Equal(t, 20, res[0].Segment.Offset)
	assert.Equal(t, "b", res[0].Segment.Text)

	f.mu.Lock()
	params, ok := f.search["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, params["exact"])
	assert.EqualValues(t, 3+tieSlack, f.search["limit"])
	f.mu.Unlock()

	require.NoError(t, s.Clear(ctx))
	coll := "/collections/" + s.Collection()
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{
		"PUT " + coll,
		"PUT " + coll + "/points",
		"POST " + coll + "/points/search",
		"DELETE " + coll,
	}, f.requests)
}

func TestStorage_SearchWidensAcrossTiedBoundary(t *testing.T) {
	point := func(index int, score float64) map[string]any {
		return map[string]any{"score": score, "payload": map[string]any{"index": index, "text": "t"}}
	}
	// Qdrant orders equal scores arbitrarily; the lowest index sits past the first page.
	f := &fakeQdrant{result: []map[string]any{
		point(7, 0.9), point(3, 0.9), point(9, 0.9), point(5, 0.9), point(2, 0.9),
		point(8, 0.9), point(1, 0.9),
		point(0, 0.1), point(4, 0.1), point(6, 0.1),
	}}
	s := newTestStorage(t, f)
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, 2))

	res, err := s.Search(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].Segment.Index)
	assert.InDelta(t, 0.9, res[0].Score, 1e-12)

	res, err = s.Search(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, []int{res[0].Segment.Index, res[1].Segment.Index, res[2].Segment.Index})

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []int{1 + tieSlack, 2 * (1 + tieSlack), 3 + tieSlack, 2 * (3 + tieSlack)}, f.limits)
}

func TestStorage_RejectsBadInput(t *testing.T) {
	f := &fakeQdrant{}
	s := newTestStorage(t, f)
	ctx := context.Background()

	assert.Error(t, s.Init(ctx, 0))
	require.NoError(t, s.Init(ctx, 2))
	assert.ErrorIs(t, s.Upsert(ctx, []domain.Segment{{Text: "a"}}, [][]float64{{1}}), domain.ErrDimensionMismatch)
	_, err := s.Search(ctx, []float64{1, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidK)
}

func TestStorage_HTTPErrorSurfaces(t *testing.T) {
	f := &fakeQdrant{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	s := NewStorage(Config{URL: srv.URL, APIKey: "wrong"})

	err := s.Init(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
