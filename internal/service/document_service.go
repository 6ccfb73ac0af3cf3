package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/repo"
)

type DocumentService struct {
	docs    *repo.DocumentRepo
	chunks  *repo.ChunkRepo
	store   *index.Store
	graphs  *graph.Registry
	answers *cache.AnswerCache
	locks   *LockSet
}

func NewDocumentService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, store *index.Store, graphs *graph.Registry, answers *cache.AnswerCache, locks *LockSet) *DocumentService {
	return &DocumentService{docs: docs, chunks: chunks, store: store, graphs: graphs, answers: answers, locks: locks}
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]*model.Document, error) {
	return s.docs.ListByUser(ctx, userID)
}

// Delete removes a document everywhere it lives: the sqlite rows, both index
// artifacts, its graph contribution and the user's cached answers. Runs under
// the user's index lock like ingestion.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("doc_id", docID))

	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	docs, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	var doc *model.Document
	for _, d := range docs {
		if d.ID == docID {
			doc = d
			break
		}
	}
	if doc == nil {
		return appErr.ErrNotFound
	}

	affected, err := s.docs.Delete(ctx, userID, docID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	if _, err := s.chunks.DeleteByDoc(ctx, userID, docID); err != nil {
		return err
	}
	if err := s.store.DeleteDoc(userID, docID); err != nil {
		return err
	}
	if err := s.graphs.Update(userID, func(g *graph.Graph) { g.RemoveDoc(doc.Filename) }); err != nil {
		return err
	}
	if err := s.graphs.FlushUser(userID); err != nil {
		logger.Warn("flush graph after delete failed", zap.Error(err))
	}
	s.answers.InvalidateUser(userID)

	logger.Info("document deleted")
	return nil
}

// Stats reports index size for the health endpoint.
func (s *DocumentService) Stats(ctx context.Context, userID string) (int64, error) {
	return s.chunks.CountByUser(ctx, userID)
}
