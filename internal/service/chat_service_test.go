package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/assembler"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/chunker"
	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/memory"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/retriever"
)

type scriptedProvider struct {
	embedDim  int
	responses map[string]string
	fallback  string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	for needle, out := range p.responses {
		if strings.Contains(prompt, needle) {
			return out, nil
		}
	}
	return p.fallback, nil
}

// Embed produces a deterministic bag-of-characters vector so similar texts
// land near each other without a real model.
func (p *scriptedProvider) Embed(ctx context.Context, modelName, text, taskType string) ([]float32, error) {
	vec := make([]float32, p.embedDim)
	for _, r := range strings.ToLower(text) {
		vec[int(r)%p.embedDim]++
	}
	return vec, nil
}

type testEnv struct {
	ingest *IngestService
	chat   *ChatService
	docs   *DocumentService
	cache  *cache.AnswerCache
}

func newTestEnv(t *testing.T, provider ai.IProvider) *testEnv {
	t.Helper()
	dataDir := t.TempDir()
	db, err := repo.Open(filepath.Join(dataDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repo.ApplyMigrations(db, "../../migrations"))

	store := index.NewStore(dataDir)
	graphs := graph.NewRegistry(store)
	answers := cache.New(64, time.Minute)
	locks := NewLockSet()
	chunkRepo := repo.NewChunkRepo(db)
	docRepo := repo.NewDocumentRepo(db)

	embedder := ai.NewEmbedder(provider, "embed-test")
	gen := ai.NewGenerator(provider, "chat-test")
	jsonGen := ai.NewGenerator(provider, "json-test")

	ingest := NewIngestService(
		docRepo, chunkRepo, chunker.New(chunker.DefaultConfig()),
		embedder, store, graphs, graph.NewExtractor(jsonGen),
		nil, answers, locks, 10, []string{".pdf", ".txt", ".md", ".html", ".htm"},
	)
	ret := retriever.New(store, embedder, nil, nil, retriever.Options{
		K: 6, FetchK: 20, BM25Weight: 0.35, DenseWeight: 0.65, LambdaMult: 0.7,
	})
	asm := assembler.New(chunkRepo)
	memories := memory.NewStore(dataDir)
	gate := memory.NewGate(jsonGen, memories, 0.8)
	chat := NewChatService(store, ret, asm, graphs, graph.NewExtractor(jsonGen), memories, gate, gen, answers)
	docs := NewDocumentService(docRepo, chunkRepo, store, graphs, answers, locks)
	return &testEnv{ingest: ingest, chat: chat, docs: docs, cache: answers}
}

const sampleDoc = `# Deployment

The service deploys with a blue green strategy. Traffic shifts to the new
version only after health checks pass on every instance.

# Rollback

A rollback restores the previous version within one minute. The previous
artifacts are always retained for seven days to make this possible.`

func TestAskNoDocuments(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{embedDim: 8, fallback: "irrelevant"})
	rsp, err := env.chat.Ask(context.Background(), "u1", "how do we deploy?", model.QueryFilters{}, nil)
	require.NoError(t, err)
	assert.Equal(t, assembler.NoDocsMessage(), rsp.Answer)
	assert.Empty(t, rsp.Citations)
}

func TestIngestThenAsk(t *testing.T) {
	provider := &scriptedProvider{
		embedDim: 8,
		responses: map[string]string{
			"Extract the key entities": `{"entities":[{"label":"Blue Green","type":"concept"},{"label":"Health Checks","type":"concept"},{"label":"Rollback","type":"concept"}],"relations":[{"source":"Blue Green","target":"Health Checks","relation":"gated_by"}]}`,
			"Question: how":            "Traffic shifts after health checks pass [1].",
		},
		fallback: "some answer",
	}
	env := newTestEnv(t, provider)

	result, err := env.ingest.Ingest(context.Background(), "u1", "deploy.md",
		strings.NewReader(sampleDoc), int64(len(sampleDoc)))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Parents)
	assert.Greater(t, result.Chunks, 0)

	var stages []string
	rsp, err := env.chat.Ask(context.Background(), "u1", "how does deployment work?", model.QueryFilters{},
		func(stage string) { stages = append(stages, stage) })
	require.NoError(t, err)
	assert.Contains(t, rsp.Answer, "health checks")
	require.NotEmpty(t, rsp.Citations)
	assert.Equal(t, "deploy.md", rsp.Citations[0].Source)
	assert.Contains(t, stages, StageRetrieving)
	assert.Contains(t, stages, StageGenerating)

	// second identical ask comes from the cache
	rsp2, err := env.chat.Ask(context.Background(), "u1", "how does deployment work?", model.QueryFilters{}, nil)
	require.NoError(t, err)
	assert.Equal(t, cache.StatusHit, rsp2.CacheStatus)
	assert.True(t, rsp2.Cached)
}

func TestAskCachedTurnStillGatesMemory(t *testing.T) {
	provider := &scriptedProvider{
		embedDim: 8,
		responses: map[string]string{
			"worth remembering":         `{"should_write":true,"target":"USER_MEMORY","summary":"Deploys use blue green","confidence":0.95,"reason":"durable fact"}`,
			"numbered context sections": "Traffic shifts after health checks pass [1].",
		},
		fallback: "some answer",
	}
	env := newTestEnv(t, provider)
	_, err := env.ingest.Ingest(context.Background(), "u1", "deploy.md",
		strings.NewReader(sampleDoc), int64(len(sampleDoc)))
	require.NoError(t, err)

	rsp, err := env.chat.Ask(context.Background(), "u1", "how does deployment work?", model.QueryFilters{}, nil)
	require.NoError(t, err)
	assert.True(t, rsp.Memory.Written)

	// the cached path still judges the turn for memorable facts
	rsp2, err := env.chat.Ask(context.Background(), "u1", "how does deployment work?", model.QueryFilters{}, nil)
	require.NoError(t, err)
	require.Equal(t, cache.StatusHit, rsp2.CacheStatus)
	assert.True(t, rsp2.Memory.Written)
}

func TestAskRefusalDropsCitations(t *testing.T) {
	provider := &scriptedProvider{
		embedDim: 8,
		fallback: assembler.RefusalSentence(),
	}
	env := newTestEnv(t, provider)
	_, err := env.ingest.Ingest(context.Background(), "u1", "deploy.md",
		strings.NewReader(sampleDoc), int64(len(sampleDoc)))
	require.NoError(t, err)

	rsp, err := env.chat.Ask(context.Background(), "u1", "what color is the sky?", model.QueryFilters{}, nil)
	require.NoError(t, err)
	assert.Equal(t, assembler.RefusalSentence(), rsp.Answer)
	assert.Empty(t, rsp.Citations)
	assert.False(t, rsp.Memory.Written)
}

func TestAskEmptyQuery(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{embedDim: 8, fallback: "x"})
	_, err := env.chat.Ask(context.Background(), "u1", "   ", model.QueryFilters{}, nil)
	assert.Error(t, err)
}

func TestIngestValidation(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{embedDim: 8, fallback: "x"})

	_, err := env.ingest.Ingest(context.Background(), "u1", "binary.exe", strings.NewReader("x"), 1)
	assert.Error(t, err)

	_, err = env.ingest.Ingest(context.Background(), "u1", "big.txt", strings.NewReader("x"), 11<<20)
	assert.Error(t, err)
}

func TestDeleteDocumentInvalidatesEverything(t *testing.T) {
	provider := &scriptedProvider{embedDim: 8, fallback: "answer about deployment"}
	env := newTestEnv(t, provider)

	result, err := env.ingest.Ingest(context.Background(), "u1", "deploy.md",
		strings.NewReader(sampleDoc), int64(len(sampleDoc)))
	require.NoError(t, err)

	// warm the cache
	_, err = env.chat.Ask(context.Background(), "u1", "deployment?", model.QueryFilters{}, nil)
	require.NoError(t, err)

	require.NoError(t, env.docs.Delete(context.Background(), "u1", result.DocID))

	list, err := env.docs.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	rsp, err := env.chat.Ask(context.Background(), "u1", "deployment?", model.QueryFilters{}, nil)
	require.NoError(t, err)
	assert.Equal(t, assembler.NoDocsMessage(), rsp.Answer)

	assert.ErrorIs(t, env.docs.Delete(context.Background(), "u1", "missing"), appErr.ErrNotFound)
}
