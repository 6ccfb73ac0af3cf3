package retriever

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/xxxsen/ragchat/internal/model"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25Index is an in-memory Okapi BM25 index rebuilt from the corpus artifact
// on each retrieval. Corpora are per user and small enough that rebuilding is
// cheaper than maintaining an incremental structure.
type bm25Index struct {
	chunks    []model.ChildChunk
	docTokens [][]string
	docFreq   map[string]int
	avgLen    float64
}

func newBM25Index(chunks []model.ChildChunk) *bm25Index {
	idx := &bm25Index{
		chunks:  chunks,
		docFreq: make(map[string]int),
	}
	totalLen := 0
	for _, chunk := range chunks {
		tokens := tokenize(chunk.Text)
		idx.docTokens = append(idx.docTokens, tokens)
		totalLen += len(tokens)
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			idx.docFreq[tok]++
		}
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(chunks))
	}
	return idx
}

// Search scores every chunk against the query and returns the top k.
func (idx *bm25Index) Search(query string, k int) []ScoredChunk {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(idx.chunks) == 0 {
		return nil
	}
	n := float64(len(idx.chunks))

	scored := make([]ScoredChunk, 0, len(idx.chunks))
	for i, chunk := range idx.chunks {
		tokens := idx.docTokens[i]
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		var score float64
		for _, qt := range queryTokens {
			freq := float64(tf[qt])
			if freq == 0 {
				continue
			}
			df := float64(idx.docFreq[qt])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := freq * (bm25K1 + 1) / (freq + bm25K1*(1-bm25B+bm25B*float64(len(tokens))/idx.avgLen))
			score += idf * norm
		}
		if score > 0 {
			scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
