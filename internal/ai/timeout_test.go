package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadlineGen struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineGen) Generate(ctx context.Context, prompt string) (string, error) {
	d.deadline, d.ok = ctx.Deadline()
	return "ok", nil
}

type deadlineEmb struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineEmb) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	d.deadline, d.ok = ctx.Deadline()
	return []float32{1}, nil
}

func (d *deadlineEmb) ModelName() string { return "m" }

func TestGeneratorTimeoutSetsDeadline(t *testing.T) {
	inner := &deadlineGen{}
	gen := WithGeneratorTimeout(inner, 5*time.Second)
	_, err := gen.Generate(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, inner.ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), inner.deadline, time.Second)
}

func TestGeneratorTimeoutPassthrough(t *testing.T) {
	inner := &deadlineGen{}
	assert.Equal(t, IGenerator(inner), WithGeneratorTimeout(inner, 0))
	assert.Nil(t, WithGeneratorTimeout(nil, time.Second))
}

func TestEmbedderTimeoutSetsDeadline(t *testing.T) {
	inner := &deadlineEmb{}
	emb := WithEmbedderTimeout(inner, 5*time.Second)
	_, err := emb.Embed(context.Background(), "x", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.True(t, inner.ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), inner.deadline, time.Second)
	assert.Equal(t, "m", emb.ModelName())
}
