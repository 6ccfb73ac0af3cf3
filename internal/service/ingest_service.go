package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/chunker"
	"github.com/xxxsen/ragchat/internal/filestore"
	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
)

const (
	embedTaskDocument    = "RETRIEVAL_DOCUMENT"
	graphExtractParallel = 4
)

type IngestService struct {
	docs      *repo.DocumentRepo
	chunks    *repo.ChunkRepo
	chunker   *chunker.Chunker
	embedder  ai.IEmbedder
	store     *index.Store
	graphs    *graph.Registry
	extractor *graph.Extractor
	files     filestore.Store
	answers   *cache.AnswerCache
	locks     *LockSet

	maxUploadBytes int64
	supportedTypes map[string]struct{}
}

func NewIngestService(
	docs *repo.DocumentRepo,
	chunks *repo.ChunkRepo,
	ck *chunker.Chunker,
	embedder ai.IEmbedder,
	store *index.Store,
	graphs *graph.Registry,
	extractor *graph.Extractor,
	files filestore.Store,
	answers *cache.AnswerCache,
	locks *LockSet,
	maxUploadMB int,
	supportedTypes []string,
) *IngestService {
	types := make(map[string]struct{}, len(supportedTypes))
	for _, t := range supportedTypes {
		types[strings.ToLower(t)] = struct{}{}
	}
	return &IngestService{
		docs:           docs,
		chunks:         chunks,
		chunker:        ck,
		embedder:       embedder,
		store:          store,
		graphs:         graphs,
		extractor:      extractor,
		files:          files,
		answers:        answers,
		locks:          locks,
		maxUploadBytes: int64(maxUploadMB) << 20,
		supportedTypes: types,
	}
}

// IngestResult summarizes what one upload produced.
type IngestResult struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Parents  int    `json:"parents"`
	Chunks   int    `json:"chunks_indexed"`
}

// Ingest validates, stores and indexes one uploaded document. The whole
// pipeline runs under the user's index lock; concurrent uploads from the same
// user queue behind each other.
func (s *IngestService) Ingest(ctx context.Context, userID, filename string, r io.Reader, size int64) (*IngestResult, error) {
	if err := s.validate(filename, size); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.maxUploadBytes {
		return nil, appErr.ErrFileTooLarge
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("filename", filename))

	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	docID := newID()
	if s.files != nil {
		key := userID + "_" + docID + strings.ToLower(filepath.Ext(filename))
		if err := s.files.Save(ctx, key, nopSeekCloser{bytes.NewReader(raw)}, int64(len(raw))); err != nil {
			logger.Warn("store raw upload failed", zap.Error(err))
		}
	}

	parents, children, err := s.chunker.Chunk(ctx, raw, chunker.MimeTypeFromName(filename), docID, filename)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{ID: docID, UserID: userID, Filename: filename, Ctime: timeutil.NowUnix()}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	if len(children) == 0 {
		logger.Warn("document produced no chunks")
		return &IngestResult{DocID: docID, Filename: filename}, nil
	}

	if err := s.persistChunks(ctx, userID, parents, children); err != nil {
		return nil, err
	}
	indexed, err := s.indexChildren(ctx, userID, children)
	if err != nil {
		return nil, err
	}
	s.extractGraph(ctx, userID, parents)
	s.answers.InvalidateUser(userID)

	logger.Info("document ingested",
		zap.String("doc_id", docID),
		zap.Int("parents", len(parents)),
		zap.Int("chunks_indexed", indexed),
	)
	return &IngestResult{DocID: docID, Filename: filename, Parents: len(parents), Chunks: indexed}, nil
}

func (s *IngestService) validate(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := s.supportedTypes[ext]; !ok {
		return appErr.ErrUnsupportedType
	}
	if size > s.maxUploadBytes {
		return appErr.ErrFileTooLarge
	}
	return nil
}

func (s *IngestService) persistChunks(ctx context.Context, userID string, parents []model.ParentChunk, children []model.ChildChunk) error {
	parentText := make(map[model.ParentKey]string, len(parents))
	for _, p := range parents {
		parentText[model.ParentKey{DocID: p.DocID, ParentIdx: p.ParentIdx}] = p.Text
	}
	records := make([]*repo.ChunkRecord, 0, len(children))
	for _, c := range children {
		records = append(records, &repo.ChunkRecord{
			ID:         newID(),
			DocID:      c.DocID,
			UserID:     userID,
			ParentIdx:  c.ParentIdx,
			ChildIdx:   c.ChildIdx,
			ParentText: parentText[c.ParentKey()],
			ChildText:  c.Text,
			Source:     c.Source,
			Section:    c.Section,
			Page:       c.Page,
		})
	}
	return s.chunks.BatchCreate(ctx, records)
}

// indexChildren embeds the children and appends both retrieval artifacts. A
// chunk whose embedding fails still enters the lexical corpus; it just cannot
// be found by dense search.
func (s *IngestService) indexChildren(ctx context.Context, userID string, children []model.ChildChunk) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	entries := make([]index.Entry, 0, len(children))
	failed := 0
	for _, child := range children {
		vec, err := s.embedder.Embed(ctx, child.Text, embedTaskDocument)
		if err != nil {
			failed++
			continue
		}
		entries = append(entries, index.Entry{Chunk: child, Embedding: vec})
	}
	if failed > 0 {
		logger.Warn("some chunks not embedded", zap.Int("failed", failed), zap.Int("total", len(children)))
	}
	if len(entries) > 0 {
		if err := s.store.AppendDense(userID, entries); err != nil {
			return 0, fmt.Errorf("append dense index: %w", err)
		}
	}
	if err := s.store.AppendCorpus(userID, children); err != nil {
		return 0, fmt.Errorf("append corpus: %w", err)
	}
	return len(children), nil
}

// extractGraph runs entity extraction over the parent sections with bounded
// parallelism. Extraction is best effort; a chunk whose call fails or returns
// garbage is skipped and the rest of the document still contributes.
func (s *IngestService) extractGraph(ctx context.Context, userID string, parents []model.ParentChunk) {
	if s.extractor == nil {
		return
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	results := make([]*graph.Extraction, len(parents))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(graphExtractParallel)
	for i := range parents {
		i := i
		eg.Go(func() error {
			ex, err := s.extractor.Extract(gctx, parents[i].Text)
			if err != nil {
				logger.Debug("graph extraction skipped for chunk",
					zap.Int("parent_idx", parents[i].ParentIdx), zap.Error(err))
				return nil
			}
			results[i] = ex
			return nil
		})
	}
	_ = eg.Wait()

	err := s.graphs.Update(userID, func(g *graph.Graph) {
		for i, ex := range results {
			if ex == nil {
				continue
			}
			g.Apply(ctx, ex, parents[i].Source)
		}
	})
	if err != nil {
		logger.Error("merge graph extraction failed", zap.Error(err))
		return
	}
	if err := s.graphs.FlushUser(userID); err != nil {
		logger.Error("flush graph failed", zap.Error(err))
	}
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
