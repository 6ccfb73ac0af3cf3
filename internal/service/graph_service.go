package service

import (
	"context"

	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

const graphTopEntities = 10

// GraphService exposes read-only views over a user's knowledge graph.
type GraphService struct {
	graphs *graph.Registry
}

func NewGraphService(graphs *graph.Registry) *GraphService {
	return &GraphService{graphs: graphs}
}

func (s *GraphService) Stats(ctx context.Context, userID string) (*model.GraphStats, error) {
	var stats model.GraphStats
	if err := s.graphs.View(userID, func(g *graph.Graph) {
		stats = g.Stats(graphTopEntities)
	}); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *GraphService) Entities(ctx context.Context, userID string) ([]model.GraphEntityView, error) {
	var views []model.GraphEntityView
	if err := s.graphs.View(userID, func(g *graph.Graph) {
		views = g.EntityViews()
	}); err != nil {
		return nil, err
	}
	if views == nil {
		views = []model.GraphEntityView{}
	}
	return views, nil
}

func (s *GraphService) Full(ctx context.Context, userID string) (*model.GraphFullView, error) {
	var full model.GraphFullView
	if err := s.graphs.View(userID, func(g *graph.Graph) {
		full = g.FullView()
	}); err != nil {
		return nil, err
	}
	if full.Entities == nil {
		full.Entities = []model.GraphEntityView{}
	}
	if full.Edges == nil {
		full.Edges = []model.GraphEdgeView{}
	}
	return &full, nil
}

// Entity returns one entity and its neighborhood.
type EntityDetail struct {
	Entity    *model.GraphEntity    `json:"entity"`
	Neighbors []model.GraphNeighbor `json:"neighbors"`
}

func (s *GraphService) Entity(ctx context.Context, userID, entityID string) (*EntityDetail, error) {
	var detail *EntityDetail
	if err := s.graphs.View(userID, func(g *graph.Graph) {
		ent, neighbors, ok := g.EntityByID(entityID)
		if !ok {
			return
		}
		if neighbors == nil {
			neighbors = []model.GraphNeighbor{}
		}
		detail = &EntityDetail{Entity: ent, Neighbors: neighbors}
	}); err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, appErr.ErrNotFound
	}
	return detail, nil
}
