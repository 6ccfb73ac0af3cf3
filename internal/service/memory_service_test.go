package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/memory"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type stubGenerator struct {
	out   string
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestMemoryInsightsEmptyPlaceholder(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	gen := &stubGenerator{out: "should not be used"}
	svc := NewMemoryService(store, gen)

	got, err := svc.Insights(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "• User: No entries yet\n• Company: No entries yet", got)
	// no memory means no model call
	assert.Zero(t, gen.calls)
}

func TestMemoryInsightsDigest(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	require.NoError(t, store.Append("u1", model.MemoryTargetUser, "Prefers terse answers"))
	gen := &stubGenerator{out: " a digest "}
	svc := NewMemoryService(store, gen)

	got, err := svc.Insights(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "a digest", got)
	assert.Equal(t, 1, gen.calls)
}

func TestMemoryClearTarget(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	svc := NewMemoryService(store, nil)
	require.NoError(t, store.Append("u1", model.MemoryTargetUser, "fact"))

	require.NoError(t, svc.Clear(context.Background(), "u1", "user"))
	view, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, view.User)

	assert.ErrorIs(t, svc.Clear(context.Background(), "u1", "bogus"), appErr.ErrInvalid)
}
