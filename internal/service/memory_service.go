package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/memory"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

const insightsPromptTemplate = `Summarize the memory notes below into a short digest for the user: what is known about them, what recurring themes show up, and anything that looks outdated or contradictory. Keep it under 200 words, plain prose.

%s`

// MemoryService exposes the persisted memory logs and an LLM digest of them.
type MemoryService struct {
	store *memory.Store
	gen   ai.IGenerator
}

func NewMemoryService(store *memory.Store, gen ai.IGenerator) *MemoryService {
	return &MemoryService{store: store, gen: gen}
}

// MemoryView is the API shape of both memory logs.
type MemoryView struct {
	User    string `json:"user_memory"`
	Company string `json:"company_memory"`
}

func (s *MemoryService) Get(ctx context.Context, userID string) (*MemoryView, error) {
	user, err := s.store.Read(userID, model.MemoryTargetUser)
	if err != nil {
		return nil, err
	}
	company, err := s.store.Read(userID, model.MemoryTargetCompany)
	if err != nil {
		return nil, err
	}
	return &MemoryView{User: user, Company: company}, nil
}

// Clear wipes one memory log. The target accepts the API spelling ("user",
// "company") as well as the stored file names.
func (s *MemoryService) Clear(ctx context.Context, userID, target string) error {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "user", strings.ToLower(model.MemoryTargetUser):
		return s.store.Clear(userID, model.MemoryTargetUser)
	case "company", strings.ToLower(model.MemoryTargetCompany):
		return s.store.Clear(userID, model.MemoryTargetCompany)
	default:
		return appErr.ErrInvalid
	}
}

const emptyInsights = "• User: No entries yet\n• Company: No entries yet"

// Insights digests the accumulated memory with a model call. Users with no
// memory yet get a fixed placeholder without spending a model call.
func (s *MemoryService) Insights(ctx context.Context, userID string) (string, error) {
	block, err := s.store.ContextBlock(userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(block) == "" {
		return emptyInsights, nil
	}
	digest, err := s.gen.Generate(ctx, fmt.Sprintf(insightsPromptTemplate, block))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(digest), nil
}
