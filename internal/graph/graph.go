package graph

import (
	"sort"
	"strings"

	"github.com/xxxsen/ragchat/internal/model"
)

// Graph is one user's knowledge graph. Entity IDs are the lowercased label,
// so mentions of "Kafka" and "kafka" merge into a single node. Not safe for
// concurrent use; the registry serializes access per user.
type Graph struct {
	Entities  map[string]*model.GraphEntity `json:"entities"`
	Relations []*model.GraphRelation        `json:"relations"`
}

func NewGraph() *Graph {
	return &Graph{Entities: make(map[string]*model.GraphEntity)}
}

func entityID(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// AddEntity merges an entity into the graph. Re-mentions from new documents
// accumulate into DocSources; the first seen label and type win.
func (g *Graph) AddEntity(label, entityType, docSource string) string {
	id := entityID(label)
	if id == "" {
		return ""
	}
	ent, ok := g.Entities[id]
	if !ok {
		ent = &model.GraphEntity{ID: id, Label: strings.TrimSpace(label), Type: entityType}
		g.Entities[id] = ent
	}
	if docSource != "" && !containsString(ent.DocSources, docSource) {
		ent.DocSources = append(ent.DocSources, docSource)
	}
	return id
}

// AddRelation merges an edge. The graph is undirected: any repeat mention of
// the same entity pair bumps the existing edge's weight, whichever direction
// or relation label it arrives with. Edges pointing at entities the graph
// does not know are dropped.
func (g *Graph) AddRelation(source, target, relation, docSource string) bool {
	srcID, dstID := entityID(source), entityID(target)
	if srcID == "" || dstID == "" || srcID == dstID {
		return false
	}
	if _, ok := g.Entities[srcID]; !ok {
		return false
	}
	if _, ok := g.Entities[dstID]; !ok {
		return false
	}
	for _, rel := range g.Relations {
		if (rel.Source == srcID && rel.Target == dstID) || (rel.Source == dstID && rel.Target == srcID) {
			rel.Weight += 1.0
			return true
		}
	}
	g.Relations = append(g.Relations, &model.GraphRelation{
		Source:    srcID,
		Target:    dstID,
		Relation:  relation,
		Weight:    1.0,
		DocSource: docSource,
	})
	return true
}

// Neighbors returns the edges touching id, both directions, strongest first.
func (g *Graph) Neighbors(id string) []model.GraphNeighbor {
	var out []model.GraphNeighbor
	for _, rel := range g.Relations {
		var otherID string
		switch id {
		case rel.Source:
			otherID = rel.Target
		case rel.Target:
			otherID = rel.Source
		default:
			continue
		}
		other, ok := g.Entities[otherID]
		if !ok {
			continue
		}
		out = append(out, model.GraphNeighbor{
			ID:       other.ID,
			Label:    other.Label,
			Type:     other.Type,
			Relation: rel.Relation,
			Weight:   rel.Weight,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func (g *Graph) degree(id string) int {
	n := 0
	for _, rel := range g.Relations {
		if rel.Source == id || rel.Target == id {
			n++
		}
	}
	return n
}

// Stats summarizes the graph for the API, including the highest-degree
// entities.
func (g *Graph) Stats(topN int) model.GraphStats {
	stats := model.GraphStats{
		Nodes: len(g.Entities),
		Edges: len(g.Relations),
	}
	if stats.Nodes > 1 {
		maxEdges := float64(stats.Nodes) * float64(stats.Nodes-1) / 2
		stats.Density = float64(stats.Edges) / maxEdges
	}
	views := g.EntityViews()
	if topN > 0 && len(views) > topN {
		views = views[:topN]
	}
	stats.TopEntities = views
	return stats
}

// EntityViews lists all entities with their degree, highest degree first.
func (g *Graph) EntityViews() []model.GraphEntityView {
	views := make([]model.GraphEntityView, 0, len(g.Entities))
	for id, ent := range g.Entities {
		views = append(views, model.GraphEntityView{
			ID:         ent.ID,
			Label:      ent.Label,
			Type:       ent.Type,
			DocSources: ent.DocSources,
			Degree:     g.degree(id),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Degree != views[j].Degree {
			return views[i].Degree > views[j].Degree
		}
		return views[i].ID < views[j].ID
	})
	return views
}

// FullView dumps the whole graph for the API. Edges loaded from older
// snapshots may carry a pair twice; the view folds those into one edge with
// the summed weight.
func (g *Graph) FullView() model.GraphFullView {
	full := model.GraphFullView{
		Entities: g.EntityViews(),
		Edges:    []model.GraphEdgeView{},
	}
	seen := make(map[string]int)
	for _, rel := range g.Relations {
		a, b := rel.Source, rel.Target
		if a > b {
			a, b = b, a
		}
		key := a + "|" + b
		if idx, ok := seen[key]; ok {
			full.Edges[idx].Weight += rel.Weight
			continue
		}
		seen[key] = len(full.Edges)
		full.Edges = append(full.Edges, model.GraphEdgeView{
			Source:   rel.Source,
			Target:   rel.Target,
			Relation: rel.Relation,
			Weight:   rel.Weight,
		})
	}
	sort.Slice(full.Edges, func(i, j int) bool {
		if full.Edges[i].Weight != full.Edges[j].Weight {
			return full.Edges[i].Weight > full.Edges[j].Weight
		}
		if full.Edges[i].Source != full.Edges[j].Source {
			return full.Edges[i].Source < full.Edges[j].Source
		}
		return full.Edges[i].Target < full.Edges[j].Target
	})
	return full
}

// RemoveDoc drops a document's contribution. Entities mentioned only by the
// removed document disappear along with every edge touching them.
func (g *Graph) RemoveDoc(docSource string) {
	for id, ent := range g.Entities {
		kept := ent.DocSources[:0]
		for _, src := range ent.DocSources {
			if src != docSource {
				kept = append(kept, src)
			}
		}
		ent.DocSources = kept
		if len(kept) == 0 {
			delete(g.Entities, id)
		}
	}
	keptRels := g.Relations[:0]
	for _, rel := range g.Relations {
		_, srcOK := g.Entities[rel.Source]
		_, dstOK := g.Entities[rel.Target]
		if srcOK && dstOK && rel.DocSource != docSource {
			keptRels = append(keptRels, rel)
		}
	}
	g.Relations = keptRels
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
