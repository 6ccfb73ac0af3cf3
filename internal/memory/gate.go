package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/llmjson"
)

const gatePromptTemplate = `You decide whether a conversation turn contains knowledge worth remembering long term.

Write to USER_MEMORY for durable facts or preferences about this specific user. Write to COMPANY_MEMORY for organization level facts useful across users. Most turns contain nothing worth keeping; when in doubt, do not write.

Respond with JSON only:
{"should_write": bool, "target": "USER_MEMORY" | "COMPANY_MEMORY" | "", "summary": "one sentence", "confidence": 0.0-1.0, "reason": "short justification"}

Question: %s

Answer: %s`

// Gate judges each answered turn with a model call and persists the summary
// only when the model both asks for a write and is confident enough. The
// conditions are a strict conjunction; a missing target or low confidence
// silently drops the write.
type Gate struct {
	gen       ai.IGenerator
	store     *Store
	threshold float64
}

func NewGate(gen ai.IGenerator, store *Store, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = 0.80
	}
	return &Gate{gen: gen, store: store, threshold: threshold}
}

// Evaluate runs the judgment call without persisting anything.
func (g *Gate) Evaluate(ctx context.Context, question, answer string) (*model.MemoryDecision, error) {
	raw, err := g.gen.Generate(ctx, fmt.Sprintf(gatePromptTemplate, question, answer))
	if err != nil {
		return nil, err
	}
	var decision model.MemoryDecision
	if err := llmjson.Unmarshal(raw, &decision); err != nil {
		return nil, err
	}
	decision.Target = strings.ToUpper(strings.TrimSpace(decision.Target))
	return &decision, nil
}

// Process evaluates the turn and writes the summary when the decision passes
// the gate. Gate failures never fail the request; the answer was already
// produced.
func (g *Gate) Process(ctx context.Context, userID string, question, answer string) model.MemoryWrite {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	decision, err := g.Evaluate(ctx, question, answer)
	if err != nil {
		logger.Warn("memory gate evaluation failed", zap.Error(err))
		return model.MemoryWrite{}
	}
	if !g.Accept(decision) {
		logger.Debug("memory write rejected",
			zap.Bool("should_write", decision.ShouldWrite),
			zap.String("target", decision.Target),
			zap.Float64("confidence", decision.Confidence),
		)
		return model.MemoryWrite{}
	}
	if err := g.store.Append(userID, decision.Target, decision.Summary); err != nil {
		logger.Error("memory write failed", zap.Error(err))
		return model.MemoryWrite{}
	}
	logger.Info("memory written",
		zap.String("target", decision.Target),
		zap.Float64("confidence", decision.Confidence),
	)
	return model.MemoryWrite{Written: true, Target: decision.Target, Summary: decision.Summary}
}

// Accept applies the write conditions: requested, valid target, confidence at
// or above the threshold.
func (g *Gate) Accept(d *model.MemoryDecision) bool {
	if d == nil || !d.ShouldWrite {
		return false
	}
	if d.Target != model.MemoryTargetUser && d.Target != model.MemoryTargetCompany {
		return false
	}
	if strings.TrimSpace(d.Summary) == "" {
		return false
	}
	return d.Confidence >= g.threshold
}
