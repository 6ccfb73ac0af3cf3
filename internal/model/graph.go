package model

const (
	EntityTypePerson  = "person"
	EntityTypeOrg     = "org"
	EntityTypeConcept = "concept"
	EntityTypeTerm    = "term"
)

type GraphEntity struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	DocSources []string `json:"doc_sources"`
}

type GraphRelation struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Relation  string  `json:"relation"`
	Weight    float64 `json:"weight"`
	DocSource string  `json:"doc_source"`
}

// GraphNeighbor is the API view of one edge out of an entity.
type GraphNeighbor struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Type     string  `json:"type"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

type GraphEntityView struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	DocSources []string `json:"doc_sources"`
	Degree     int      `json:"degree"`
}

// GraphEdgeView is one undirected edge in the full-graph dump. Mirrored
// relations are collapsed into a single edge with their weights combined.
type GraphEdgeView struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

type GraphFullView struct {
	Entities []GraphEntityView `json:"entities"`
	Edges    []GraphEdgeView   `json:"edges"`
}

type GraphStats struct {
	Nodes       int               `json:"nodes"`
	Edges       int               `json:"edges"`
	Density     float64           `json:"density"`
	TopEntities []GraphEntityView `json:"top_entities"`
}
