package retriever

import (
	"math"
	"sort"

	"github.com/xxxsen/ragchat/internal/index"
)

// denseSearch ranks index entries by cosine similarity to the query vector
// and diversifies the top fetchK with maximal marginal relevance. lambda 1.0
// is pure relevance, 0.0 pure diversity.
func denseSearch(query []float32, entries []index.Entry, fetchK int, lambda float64) []ScoredChunk {
	if len(query) == 0 || len(entries) == 0 {
		return nil
	}
	type candidate struct {
		entry index.Entry
		sim   float64
	}
	candidates := make([]candidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, candidate{entry: e, sim: cosineSimilarity(query, e.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })

	// MMR over the similarity-ordered pool
	if fetchK > len(candidates) {
		fetchK = len(candidates)
	}
	selected := make([]candidate, 0, fetchK)
	remaining := candidates
	for len(selected) < fetchK && len(remaining) > 0 {
		bestIdx, bestScore := -1, math.Inf(-1)
		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if s := cosineSimilarity(cand.entry.Embedding, sel.entry.Embedding); s > maxSim {
					maxSim = s
				}
			}
			score := lambda*cand.sim - (1-lambda)*maxSim
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	out := make([]ScoredChunk, 0, len(selected))
	for _, cand := range selected {
		out = append(out, ScoredChunk{Chunk: cand.entry.Chunk, Score: cand.sim})
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
