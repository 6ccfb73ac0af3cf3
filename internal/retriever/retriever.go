package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errors"
)

const embedTaskQuery = "RETRIEVAL_QUERY"

// ScoredChunk is one retrieval candidate with its fused relevance score.
type ScoredChunk struct {
	Chunk model.ChildChunk
	Score float64
}

// Options are the retrieval tuning knobs.
type Options struct {
	K           int
	FetchK      int
	BM25Weight  float64
	DenseWeight float64
	LambdaMult  float64
	HydeEnabled bool
}

// Retriever runs hybrid retrieval over a user's index: BM25 over the lexical
// corpus fused with dense similarity over the embedded chunks, optionally
// query-expanded with HyDE and reordered by a hosted reranker.
type Retriever struct {
	store    *index.Store
	embedder ai.IEmbedder
	hydeGen  ai.IGenerator
	reranker *RerankClient
	opts     Options
}

func New(store *index.Store, embedder ai.IEmbedder, hydeGen ai.IGenerator, reranker *RerankClient, opts Options) *Retriever {
	if opts.K <= 0 {
		opts.K = 6
	}
	if opts.FetchK < opts.K {
		opts.FetchK = opts.K
	}
	return &Retriever{store: store, embedder: embedder, hydeGen: hydeGen, reranker: reranker, opts: opts}
}

// Retrieve returns the top candidates for the query. Both rankers run against
// the filtered candidate set; a filter that matches nothing falls back to the
// unfiltered set rather than returning an empty answer.
func (r *Retriever) Retrieve(ctx context.Context, userID string, query string, filters model.QueryFilters) ([]ScoredChunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	entries, err := r.store.LoadDense(userID)
	if err != nil {
		return nil, fmt.Errorf("load dense index: %w", err)
	}
	corpus, err := r.store.LoadCorpus(userID)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(entries) == 0 && len(corpus) == 0 {
		return nil, errors.ErrNoIndex
	}
	entries, corpus = applyFilters(entries, corpus, filters)

	lexical := newBM25Index(corpus).Search(query, r.opts.FetchK)

	var dense []ScoredChunk
	embedText := query
	if r.opts.HydeEnabled {
		embedText = hypotheticalDocument(ctx, r.hydeGen, query)
	}
	queryVec, err := r.embedder.Embed(ctx, embedText, embedTaskQuery)
	if err != nil {
		// lexical results still answer the query, just less precisely
		logger.Warn("query embedding failed, lexical-only retrieval", zap.Error(err))
	} else {
		dense = denseSearch(queryVec, entries, r.opts.FetchK, r.opts.LambdaMult)
	}
	if len(lexical) == 0 && len(dense) == 0 {
		return nil, nil
	}

	fused := fuse(lexical, dense, r.opts.BM25Weight, r.opts.DenseWeight)
	if len(fused) > r.opts.K {
		fused = fused[:r.opts.K]
	}
	fused = r.rerank(ctx, query, fused)

	logger.Debug("retrieval complete",
		zap.Int("lexical", len(lexical)),
		zap.Int("dense", len(dense)),
		zap.Int("returned", len(fused)),
	)
	return fused, nil
}

func chunkKey(c model.ChildChunk) string {
	return fmt.Sprintf("%s:%d:%d", c.DocID, c.ParentIdx, c.ChildIdx)
}

// fuse max-normalizes each ranker's scores and merges them with the
// configured weights. A chunk found by both rankers sums both contributions.
func fuse(lexical, dense []ScoredChunk, bm25Weight, denseWeight float64) []ScoredChunk {
	merged := make(map[string]*ScoredChunk)
	order := make([]string, 0, len(lexical)+len(dense))
	add := func(list []ScoredChunk, weight float64) {
		maxScore := 0.0
		for _, sc := range list {
			if sc.Score > maxScore {
				maxScore = sc.Score
			}
		}
		if maxScore == 0 {
			return
		}
		for _, sc := range list {
			key := chunkKey(sc.Chunk)
			entry, ok := merged[key]
			if !ok {
				entry = &ScoredChunk{Chunk: sc.Chunk}
				merged[key] = entry
				order = append(order, key)
			}
			entry.Score += weight * (sc.Score / maxScore)
		}
	}
	add(lexical, bm25Weight)
	add(dense, denseWeight)

	out := make([]ScoredChunk, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// rerank narrows the fused pool to the reranker's top picks. Pools smaller
// than the rerank cut are left alone, and any rerank failure keeps the fused
// order without narrowing.
func (r *Retriever) rerank(ctx context.Context, query string, pool []ScoredChunk) []ScoredChunk {
	if r.reranker == nil || len(pool) < r.reranker.TopN() {
		return pool
	}
	docs := make([]string, 0, len(pool))
	for _, sc := range pool {
		docs = append(docs, sc.Chunk.Text)
	}
	indexes, err := r.reranker.Rerank(ctx, query, docs)
	if err != nil {
		logutil.GetLogger(ctx).Warn("rerank failed, keeping fused order", zap.Error(err))
		return pool
	}
	if len(indexes) == 0 {
		return pool
	}
	picked := make(map[int]struct{}, len(indexes))
	out := make([]ScoredChunk, 0, r.reranker.TopN())
	for _, idx := range indexes {
		if idx < 0 || idx >= len(pool) {
			continue
		}
		if _, dup := picked[idx]; dup {
			continue
		}
		picked[idx] = struct{}{}
		out = append(out, pool[idx])
		if len(out) >= r.reranker.TopN() {
			break
		}
	}
	return out
}

// applyFilters narrows candidates to the requested source, section or page.
// Filters fail open: when nothing survives, the unfiltered sets are returned.
func applyFilters(entries []index.Entry, corpus []model.ChildChunk, filters model.QueryFilters) ([]index.Entry, []model.ChildChunk) {
	if filters.Empty() {
		return entries, corpus
	}
	matches := func(c model.ChildChunk) bool {
		if filters.Source != "" && !strings.EqualFold(c.Source, filters.Source) {
			return false
		}
		if filters.Section != "" && !strings.Contains(strings.ToLower(c.Section), strings.ToLower(filters.Section)) {
			return false
		}
		if filters.Page > 0 && c.Page != filters.Page {
			return false
		}
		return true
	}
	var keptEntries []index.Entry
	for _, e := range entries {
		if matches(e.Chunk) {
			keptEntries = append(keptEntries, e)
		}
	}
	var keptCorpus []model.ChildChunk
	for _, c := range corpus {
		if matches(c) {
			keptCorpus = append(keptCorpus, c)
		}
	}
	if len(keptEntries) == 0 && len(keptCorpus) == 0 {
		return entries, corpus
	}
	return keptEntries, keptCorpus
}
