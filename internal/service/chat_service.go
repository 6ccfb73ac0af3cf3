package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/assembler"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/memory"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/retriever"
)

// Stage names emitted while answering so callers can observe pipeline progress.
const (
	StageRetrieving = "retrieving"
	StageAssembling = "assembling"
	StageGenerating = "generating"
	StageSaving     = "saving"
)

// AskResponse carries the answer plus how the cache and memory gate behaved
// for this turn.
type AskResponse struct {
	model.AskResult
	CacheStatus cache.Status      `json:"cache_status"`
	Memory      model.MemoryWrite `json:"memory"`
}

type ChatService struct {
	store     *index.Store
	retriever *retriever.Retriever
	assembler *assembler.Assembler
	graphs    *graph.Registry
	extractor *graph.Extractor
	memories  *memory.Store
	gate      *memory.Gate
	generator ai.IGenerator
	answers   *cache.AnswerCache
}

func NewChatService(
	store *index.Store,
	r *retriever.Retriever,
	a *assembler.Assembler,
	graphs *graph.Registry,
	extractor *graph.Extractor,
	memories *memory.Store,
	gate *memory.Gate,
	generator ai.IGenerator,
	answers *cache.AnswerCache,
) *ChatService {
	return &ChatService{
		store:     store,
		retriever: r,
		assembler: a,
		graphs:    graphs,
		extractor: extractor,
		memories:  memories,
		gate:      gate,
		generator: generator,
		answers:   answers,
	}
}

// Ask answers one query end to end. onStage, when non-nil, is called as the
// pipeline moves between phases.
func (s *ChatService) Ask(ctx context.Context, userID, query string, filters model.QueryFilters, onStage func(stage string)) (*AskResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrEmptyQuery
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	stage := func(name string) {
		if onStage != nil {
			onStage(name)
		}
	}

	if !s.store.HasIndex(userID) {
		return &AskResponse{
			AskResult:   model.AskResult{Answer: assembler.NoDocsMessage()},
			CacheStatus: cache.StatusUnavailable,
		}, nil
	}

	cached, status := s.answers.Get(userID, query, filters)
	if status == cache.StatusHit {
		logger.Debug("answer served from cache")
		rsp := &AskResponse{AskResult: cached, CacheStatus: status}
		if s.gate != nil {
			stage(StageSaving)
			rsp.Memory = s.gate.Process(ctx, userID, query, cached.Answer)
		}
		return rsp, nil
	}

	stage(StageRetrieving)
	chunks, err := s.retriever.Retrieve(ctx, userID, query, filters)
	if err != nil {
		if appErr.IsNoIndex(err) {
			return &AskResponse{
				AskResult:   model.AskResult{Answer: assembler.NoDocsMessage()},
				CacheStatus: status,
			}, nil
		}
		return nil, err
	}
	if len(chunks) == 0 {
		result := model.AskResult{Answer: assembler.RefusalSentence()}
		s.answers.Put(userID, query, filters, result)
		rsp := &AskResponse{AskResult: result, CacheStatus: status}
		if s.gate != nil {
			stage(StageSaving)
			rsp.Memory = s.gate.Process(ctx, userID, query, result.Answer)
		}
		return rsp, nil
	}

	stage(StageAssembling)
	var graphContext string
	if s.extractor != nil {
		queryEntities := s.extractor.QueryEntities(ctx, query)
		if len(queryEntities) > 0 {
			if err := s.graphs.View(userID, func(g *graph.Graph) {
				graphContext = g.ContextForEntities(queryEntities)
			}); err != nil {
				logger.Warn("load graph context failed", zap.Error(err))
			}
		}
	}
	memoryContext, err := s.memories.ContextBlock(userID)
	if err != nil {
		logger.Warn("load memory context failed", zap.Error(err))
	}
	prompt, err := s.assembler.Build(ctx, userID, query, chunks, graphContext, memoryContext)
	if err != nil {
		return nil, err
	}

	stage(StageGenerating)
	answer, err := s.generator.Generate(ctx, prompt.Text)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)

	result := model.AskResult{Answer: answer, Citations: prompt.Citations}
	refused := strings.Contains(answer, assembler.RefusalSentence())
	if refused {
		// a refusal cites nothing
		result.Citations = nil
	}

	// The gate inspects every answered turn, refusals included; it decides
	// on its own whether the exchange is worth remembering.
	rsp := &AskResponse{AskResult: result, CacheStatus: status}
	if s.gate != nil {
		stage(StageSaving)
		rsp.Memory = s.gate.Process(ctx, userID, query, answer)
	}
	s.answers.Put(userID, query, filters, result)

	logger.Info("query answered",
		zap.Int("citations", len(result.Citations)),
		zap.Bool("refused", refused),
		zap.Bool("memory_written", rsp.Memory.Written),
	)
	return rsp, nil
}
