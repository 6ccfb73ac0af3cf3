package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/model"
)

// Registry holds one in-memory graph per user, backed by a JSON artifact in
// the user's vectorstore directory. Mutations mark the graph dirty; Flush
// persists dirty graphs and runs both on a schedule and after ingestion.
type Registry struct {
	store *index.Store

	mu     sync.Mutex
	graphs map[string]*userGraph
}

type userGraph struct {
	mu    sync.Mutex
	graph *Graph
	dirty bool
}

func NewRegistry(store *index.Store) *Registry {
	return &Registry{store: store, graphs: make(map[string]*userGraph)}
}

func (r *Registry) get(userID string) (*userGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ug, ok := r.graphs[userID]; ok {
		return ug, nil
	}
	g, err := r.load(userID)
	if err != nil {
		return nil, err
	}
	ug := &userGraph{graph: g}
	r.graphs[userID] = ug
	return ug, nil
}

func (r *Registry) load(userID string) (*Graph, error) {
	raw, err := os.ReadFile(r.store.GraphPath(userID))
	if os.IsNotExist(err) {
		return NewGraph(), nil
	}
	if err != nil {
		return nil, err
	}
	g := NewGraph()
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	if g.Entities == nil {
		g.Entities = make(map[string]*model.GraphEntity)
	}
	return g, nil
}

// Update runs fn against the user's graph under its lock and marks it dirty.
func (r *Registry) Update(userID string, fn func(g *Graph)) error {
	ug, err := r.get(userID)
	if err != nil {
		return err
	}
	ug.mu.Lock()
	defer ug.mu.Unlock()
	fn(ug.graph)
	ug.dirty = true
	return nil
}

// View runs fn against the user's graph under its lock without dirtying it.
func (r *Registry) View(userID string, fn func(g *Graph)) error {
	ug, err := r.get(userID)
	if err != nil {
		return err
	}
	ug.mu.Lock()
	defer ug.mu.Unlock()
	fn(ug.graph)
	return nil
}

// FlushUser persists the user's graph if it has unsaved changes.
func (r *Registry) FlushUser(userID string) error {
	r.mu.Lock()
	ug, ok := r.graphs[userID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	ug.mu.Lock()
	defer ug.mu.Unlock()
	if !ug.dirty {
		return nil
	}
	if err := r.persist(userID, ug.graph); err != nil {
		return err
	}
	ug.dirty = false
	return nil
}

// Flush persists every dirty graph. Failures are logged per user so one bad
// directory does not block the rest of the checkpoint, and the first error
// is returned so the caller can surface it.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	var firstErr error
	for _, id := range ids {
		if err := r.FlushUser(id); err != nil {
			logutil.GetLogger(ctx).Error("flush knowledge graph failed",
				zap.String("user_id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Registry) persist(userID string, g *Graph) error {
	path := r.store.GraphPath(userID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Hydrate preloads graphs for every user directory found on disk. Called at
// startup so first queries do not pay the load cost.
func (r *Registry) Hydrate(ctx context.Context, dataDir string) {
	logger := logutil.GetLogger(ctx)
	entries, err := os.ReadDir(filepath.Join(dataDir, "vectorstore"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("scan vectorstore dir failed", zap.Error(err))
		}
		return
	}
	loaded := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "user_") {
			continue
		}
		userID := strings.TrimPrefix(entry.Name(), "user_")
		if userID == "" {
			continue
		}
		if _, err := r.get(userID); err != nil {
			logger.Warn("hydrate knowledge graph failed",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		loaded++
	}
	if loaded > 0 {
		logger.Info("knowledge graphs hydrated", zap.Int("users", loaded))
	}
}
