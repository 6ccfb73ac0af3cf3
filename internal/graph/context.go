package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/ragchat/internal/model"
)

const (
	contextMaxHops       = 2
	contextFanoutPerNode = 3
	contextMaxNodes      = 8
	contextMaxSources    = 3
	contextHeadline      = "=== Knowledge Graph Context ==="
)

// MatchEntities maps extracted query entities onto graph nodes. A node
// matches when either string contains the other, so "kafka" finds
// "kafka streams" and the reverse.
func (g *Graph) MatchEntities(queryEntities []string) []string {
	var ids []string
	for id := range g.Entities {
		for _, qe := range queryEntities {
			qe = entityID(qe)
			if qe == "" {
				continue
			}
			if strings.Contains(id, qe) || strings.Contains(qe, id) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ContextForEntities walks up to two hops out from the matched nodes,
// following at most three strongest edges per node and keeping at most eight
// nodes, then renders the subgraph as a prompt-ready block: one ENTITY line
// per node with its type and up to three sources, followed by the relations
// whose both endpoints survived the walk. Returns "" when nothing matched.
func (g *Graph) ContextForEntities(queryEntities []string) string {
	seeds := g.MatchEntities(queryEntities)
	if len(seeds) == 0 {
		return ""
	}

	subgraph := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		subgraph[id] = struct{}{}
	}
	frontier := seeds
	for hop := 0; hop < contextMaxHops && len(subgraph) < contextMaxNodes; hop++ {
		var next []string
		for _, id := range frontier {
			neighbors := g.Neighbors(id)
			if len(neighbors) > contextFanoutPerNode {
				neighbors = neighbors[:contextFanoutPerNode]
			}
			for _, nb := range neighbors {
				if _, seen := subgraph[nb.ID]; seen {
					continue
				}
				subgraph[nb.ID] = struct{}{}
				next = append(next, nb.ID)
			}
		}
		frontier = next
	}

	nodes := make([]string, 0, len(subgraph))
	for id := range subgraph {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	if len(nodes) > contextMaxNodes {
		nodes = nodes[:contextMaxNodes]
	}
	kept := make(map[string]struct{}, len(nodes))
	for _, id := range nodes {
		kept[id] = struct{}{}
	}

	lines := []string{contextHeadline}
	for _, id := range nodes {
		ent, ok := g.Entities[id]
		if !ok {
			continue
		}
		sources := ent.DocSources
		if len(sources) > contextMaxSources {
			sources = sources[:contextMaxSources]
		}
		lines = append(lines, fmt.Sprintf("ENTITY: %s (type: %s, sources: %s)",
			ent.Label, ent.Type, strings.Join(sources, ", ")))
	}

	lines = append(lines, "\nRELATIONSHIPS:")
	for _, rel := range g.Relations {
		if _, ok := kept[rel.Source]; !ok {
			continue
		}
		if _, ok := kept[rel.Target]; !ok {
			continue
		}
		srcEnt, dstEnt := g.Entities[rel.Source], g.Entities[rel.Target]
		if srcEnt == nil || dstEnt == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s --[%s]--> %s (weight: %.1f, source: %s)",
			srcEnt.Label, rel.Relation, dstEnt.Label, rel.Weight, rel.DocSource))
	}
	return strings.Join(lines, "\n")
}

// EntityByID returns the entity and its neighbors for the graph API.
func (g *Graph) EntityByID(id string) (*model.GraphEntity, []model.GraphNeighbor, bool) {
	ent, ok := g.Entities[entityID(id)]
	if !ok {
		return nil, nil, false
	}
	return ent, g.Neighbors(ent.ID), true
}
