package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
)

const hydePromptTemplate = `Write a short factual paragraph that would plausibly appear in a document answering the question below. Do not mention that it is hypothetical, just write the passage.

Question: %s`

const hydeMaxChars = 1000

// hypotheticalDocument generates a HyDE passage for the query. Embedding a
// plausible answer instead of the raw question lands closer to answer-bearing
// chunks in vector space. Any failure falls back to the query itself.
func hypotheticalDocument(ctx context.Context, gen ai.IGenerator, query string) string {
	if gen == nil {
		return query
	}
	passage, err := gen.Generate(ctx, fmt.Sprintf(hydePromptTemplate, query))
	if err != nil {
		logutil.GetLogger(ctx).Warn("hyde generation failed, using raw query", zap.Error(err))
		return query
	}
	passage = strings.TrimSpace(passage)
	if passage == "" {
		return query
	}
	if len(passage) > hydeMaxChars {
		passage = passage[:hydeMaxChars]
	}
	// keep the original query terms in the embedded text
	return query + "\n" + passage
}
