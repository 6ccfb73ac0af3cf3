package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
)

func TestAnswerCacheHitMiss(t *testing.T) {
	c := New(16, time.Minute)

	_, status := c.Get("u1", "what is go?", model.QueryFilters{})
	assert.Equal(t, StatusMiss, status)

	c.Put("u1", "what is go?", model.QueryFilters{}, model.AskResult{Answer: "a language"})
	got, status := c.Get("u1", "what is go?", model.QueryFilters{})
	require.Equal(t, StatusHit, status)
	assert.Equal(t, "a language", got.Answer)
	assert.True(t, got.Cached)

	// different filters are a different cache entry
	_, status = c.Get("u1", "what is go?", model.QueryFilters{Source: "doc.md"})
	assert.Equal(t, StatusMiss, status)
}

func TestAnswerCacheNormalizesQuery(t *testing.T) {
	c := New(16, time.Minute)
	c.Put("u1", "What is Go?", model.QueryFilters{}, model.AskResult{Answer: "a language"})

	// casing and surrounding whitespace do not split the entry
	got, status := c.Get("u1", "  what is go?  ", model.QueryFilters{})
	require.Equal(t, StatusHit, status)
	assert.Equal(t, "a language", got.Answer)
}

func TestAnswerCachePerUserIsolation(t *testing.T) {
	c := New(16, time.Minute)
	c.Put("u1", "q", model.QueryFilters{}, model.AskResult{Answer: "one"})
	c.Put("u2", "q", model.QueryFilters{}, model.AskResult{Answer: "two"})

	got, status := c.Get("u2", "q", model.QueryFilters{})
	require.Equal(t, StatusHit, status)
	assert.Equal(t, "two", got.Answer)
}

func TestAnswerCacheInvalidateUser(t *testing.T) {
	c := New(16, time.Minute)
	c.Put("u1", "q1", model.QueryFilters{}, model.AskResult{Answer: "a"})
	c.Put("u1", "q2", model.QueryFilters{}, model.AskResult{Answer: "b"})
	c.Put("u2", "q1", model.QueryFilters{}, model.AskResult{Answer: "c"})

	c.InvalidateUser("u1")

	_, status := c.Get("u1", "q1", model.QueryFilters{})
	assert.Equal(t, StatusMiss, status)
	_, status = c.Get("u1", "q2", model.QueryFilters{})
	assert.Equal(t, StatusMiss, status)
	_, status = c.Get("u2", "q1", model.QueryFilters{})
	assert.Equal(t, StatusHit, status)
}

func TestAnswerCacheDisabled(t *testing.T) {
	c := New(0, time.Minute)
	c.Put("u1", "q", model.QueryFilters{}, model.AskResult{Answer: "a"})
	_, status := c.Get("u1", "q", model.QueryFilters{})
	assert.Equal(t, StatusUnavailable, status)
	assert.Equal(t, 0, c.Len())
	c.InvalidateUser("u1")

	var nilCache *AnswerCache
	_, status = nilCache.Get("u1", "q", model.QueryFilters{})
	assert.Equal(t, StatusUnavailable, status)
}
