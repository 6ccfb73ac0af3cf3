package ai

import (
	"context"
	"time"
)

// WithGeneratorTimeout bounds every Generate call with its own deadline. A
// nil generator or non-positive timeout passes through unchanged.
func WithGeneratorTimeout(gen IGenerator, timeout time.Duration) IGenerator {
	if gen == nil || timeout <= 0 {
		return gen
	}
	return &timeoutGenerator{gen: gen, timeout: timeout}
}

type timeoutGenerator struct {
	gen     IGenerator
	timeout time.Duration
}

func (g *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.gen.Generate(ctx, prompt)
}

// WithEmbedderTimeout bounds every Embed call with its own deadline.
func WithEmbedderTimeout(emb IEmbedder, timeout time.Duration) IEmbedder {
	if emb == nil || timeout <= 0 {
		return emb
	}
	return &timeoutEmbedder{emb: emb, timeout: timeout}
}

type timeoutEmbedder struct {
	emb     IEmbedder
	timeout time.Duration
}

func (e *timeoutEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.emb.Embed(ctx, text, taskType)
}

func (e *timeoutEmbedder) ModelName() string {
	return e.emb.ModelName()
}
