package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
)

func testEntry(docID string, childIdx int) Entry {
	return Entry{
		Chunk: model.ChildChunk{
			DocID:     docID,
			ParentIdx: 0,
			ChildIdx:  childIdx,
			Source:    "file.md",
			Section:   "Intro",
			Text:      "some text",
		},
		Embedding: []float32{0.1, 0.2, 0.3},
	}
}

func TestStoreDenseRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	got, err := s.LoadDense("u7")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, s.HasIndex("u7"))

	require.NoError(t, s.AppendDense("u7", []Entry{testEntry("d1", 0), testEntry("d1", 1)}))
	require.NoError(t, s.AppendDense("u7", []Entry{testEntry("d2", 0)}))

	got, err = s.LoadDense("u7")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d1", got[0].Chunk.DocID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got[0].Embedding)
	assert.True(t, s.HasIndex("u7"))
}

func TestStoreUserIsolation(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.AppendDense("u1", []Entry{testEntry("d1", 0)}))

	got, err := s.LoadDense("u2")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotEqual(t, s.UserDir("u1"), s.UserDir("u2"))
}

func TestStoreDeleteDoc(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.AppendDense("u3", []Entry{testEntry("d1", 0), testEntry("d2", 0)}))
	require.NoError(t, s.AppendCorpus("u3", []model.ChildChunk{
		{DocID: "d1", Text: "a"},
		{DocID: "d2", Text: "b"},
	}))

	require.NoError(t, s.DeleteDoc("u3", "d1"))
	entries, err := s.LoadDense("u3")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d2", entries[0].Chunk.DocID)
	chunks, err := s.LoadCorpus("u3")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	// deleting the last doc removes the artifacts entirely
	require.NoError(t, s.DeleteDoc("u3", "d2"))
	assert.False(t, s.HasIndex("u3"))
	chunks, err = s.LoadCorpus("u3")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStoreDeleteDocMissingIndex(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.NoError(t, s.DeleteDoc("u9", "nope"))
}
