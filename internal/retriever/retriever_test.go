package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errors"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func chunk(docID string, childIdx int, text string) model.ChildChunk {
	return model.ChildChunk{DocID: docID, ChildIdx: childIdx, Source: docID + ".md", Text: text}
}

func seedIndex(t *testing.T, store *index.Store, userID string) {
	t.Helper()
	require.NoError(t, store.AppendDense(userID, []index.Entry{
		{Chunk: chunk("cats", 0, "Cats are small carnivorous mammals kept as pets."), Embedding: []float32{1, 0, 0}},
		{Chunk: chunk("dogs", 0, "Dogs are loyal domesticated animals that bark."), Embedding: []float32{0, 1, 0}},
		{Chunk: chunk("go", 0, "Go is a statically typed programming language from Google."), Embedding: []float32{0, 0, 1}},
	}))
	require.NoError(t, store.AppendCorpus(userID, []model.ChildChunk{
		chunk("cats", 0, "Cats are small carnivorous mammals kept as pets."),
		chunk("dogs", 0, "Dogs are loyal domesticated animals that bark."),
		chunk("go", 0, "Go is a statically typed programming language from Google."),
	}))
}

func TestRetrieveHybrid(t *testing.T) {
	store := index.NewStore(t.TempDir())
	seedIndex(t, store, "u1")

	r := New(store, &fakeEmbedder{vec: []float32{1, 0, 0}}, nil, nil, Options{
		K: 6, FetchK: 20, BM25Weight: 0.35, DenseWeight: 0.65, LambdaMult: 0.7,
	})
	got, err := r.Retrieve(context.Background(), "u1", "tell me about cats", model.QueryFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	// found by both rankers, so it must rank first
	assert.Equal(t, "cats", got[0].Chunk.DocID)
}

func TestRetrieveNoIndex(t *testing.T) {
	store := index.NewStore(t.TempDir())
	r := New(store, &fakeEmbedder{vec: []float32{1}}, nil, nil, Options{K: 6})
	_, err := r.Retrieve(context.Background(), "u42", "anything", model.QueryFilters{})
	assert.ErrorIs(t, err, errors.ErrNoIndex)
}

func TestRetrieveEmbedFailureDegradesToLexical(t *testing.T) {
	store := index.NewStore(t.TempDir())
	seedIndex(t, store, "u2")

	r := New(store, &fakeEmbedder{err: assert.AnError}, nil, nil, Options{
		K: 6, FetchK: 20, BM25Weight: 0.35, DenseWeight: 0.65, LambdaMult: 0.7,
	})
	got, err := r.Retrieve(context.Background(), "u2", "programming language", model.QueryFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "go", got[0].Chunk.DocID)
}

func TestRetrieveFilterFailsOpen(t *testing.T) {
	store := index.NewStore(t.TempDir())
	seedIndex(t, store, "u3")

	r := New(store, &fakeEmbedder{vec: []float32{1, 0, 0}}, nil, nil, Options{
		K: 6, FetchK: 20, BM25Weight: 0.35, DenseWeight: 0.65, LambdaMult: 0.7,
	})
	// filter that matches nothing is ignored
	got, err := r.Retrieve(context.Background(), "u3", "cats", model.QueryFilters{Source: "nothing.pdf"})
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	// filter that matches restricts the candidates
	got, err = r.Retrieve(context.Background(), "u3", "cats dogs go", model.QueryFilters{Source: "dogs.md"})
	require.NoError(t, err)
	for _, sc := range got {
		assert.Equal(t, "dogs", sc.Chunk.DocID)
	}
}

func TestBM25Search(t *testing.T) {
	idx := newBM25Index([]model.ChildChunk{
		chunk("a", 0, "the quick brown fox jumps over the lazy dog"),
		chunk("b", 0, "an essay about politics and economics"),
		chunk("c", 0, "foxes are cunning animals, a fox hunts at night"),
	})
	got := idx.Search("fox", 2)
	require.NotEmpty(t, got)
	for _, sc := range got {
		assert.NotEqual(t, "b", sc.Chunk.DocID)
	}
	assert.Empty(t, idx.Search("unrelatedterm", 2))
}

func TestDenseSearchMMRDiversifies(t *testing.T) {
	entries := []index.Entry{
		{Chunk: chunk("a", 0, "a"), Embedding: []float32{1, 0}},
		{Chunk: chunk("a", 1, "a2"), Embedding: []float32{1, 0}},
		{Chunk: chunk("b", 0, "b"), Embedding: []float32{0, 1}},
	}
	got := denseSearch([]float32{0.8, 0.6}, entries, 2, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Chunk.DocID)
	// with diversity weighting the near-duplicate loses to the distinct vector
	assert.Equal(t, "b", got[1].Chunk.DocID)
}

func TestFuseWeights(t *testing.T) {
	shared := chunk("x", 0, "shared")
	lexOnly := chunk("l", 0, "lex")
	denseOnly := chunk("d", 0, "dense")
	fused := fuse(
		[]ScoredChunk{{Chunk: shared, Score: 2}, {Chunk: lexOnly, Score: 2}},
		[]ScoredChunk{{Chunk: shared, Score: 0.9}, {Chunk: denseOnly, Score: 0.9}},
		0.35, 0.65,
	)
	require.Len(t, fused, 3)
	assert.Equal(t, "x", fused[0].Chunk.DocID)
	assert.InDelta(t, 1.0, fused[0].Score, 1e-9)
	// dense weight beats lexical weight at equal normalized score
	assert.Equal(t, "d", fused[1].Chunk.DocID)
}

func TestRerankReorders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/rerank", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 3, "relevance_score": 0.99},
				{"index": 0, "relevance_score": 0.42},
			},
		})
	}))
	defer srv.Close()

	store := index.NewStore(t.TempDir())
	client := NewRerankClient(RerankConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "rerank-v3", TopN: 4})
	r := New(store, &fakeEmbedder{vec: []float32{1}}, nil, client, Options{K: 6, FetchK: 20})

	pool := []ScoredChunk{
		{Chunk: chunk("a", 0, "a"), Score: 4},
		{Chunk: chunk("b", 0, "b"), Score: 3},
		{Chunk: chunk("c", 0, "c"), Score: 2},
		{Chunk: chunk("d", 0, "d"), Score: 1},
	}
	// only the reranker's picks survive, best first
	got := r.rerank(context.Background(), "q", pool)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].Chunk.DocID)
	assert.Equal(t, "a", got[1].Chunk.DocID)
}

func TestRerankTruncatesToTopN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 5, "relevance_score": 0.9},
				{"index": 4, "relevance_score": 0.8},
				{"index": 3, "relevance_score": 0.7},
				{"index": 2, "relevance_score": 0.6},
				{"index": 1, "relevance_score": 0.5},
				{"index": 0, "relevance_score": 0.4},
			},
		})
	}))
	defer srv.Close()

	store := index.NewStore(t.TempDir())
	client := NewRerankClient(RerankConfig{BaseURL: srv.URL, Model: "rerank-v3", TopN: 4})
	r := New(store, &fakeEmbedder{vec: []float32{1}}, nil, client, Options{K: 6, FetchK: 20})

	var pool []ScoredChunk
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		pool = append(pool, ScoredChunk{Chunk: chunk(id, 0, id), Score: 1})
	}
	got := r.rerank(context.Background(), "q", pool)
	require.Len(t, got, 4)
	assert.Equal(t, "f", got[0].Chunk.DocID)
	assert.Equal(t, "c", got[3].Chunk.DocID)
}

func TestRerankSkipsSmallPool(t *testing.T) {
	client := NewRerankClient(RerankConfig{BaseURL: "http://127.0.0.1:1", TopN: 4})
	store := index.NewStore(t.TempDir())
	r := New(store, &fakeEmbedder{vec: []float32{1}}, nil, client, Options{K: 6})
	pool := []ScoredChunk{{Chunk: chunk("a", 0, "a"), Score: 1}}
	assert.Equal(t, pool, r.rerank(context.Background(), "q", pool))
}
