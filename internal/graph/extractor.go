package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/pkg/llmjson"
)

const (
	extractWindowChars = 2000
	maxEntitiesPerCall = 10
)

const extractPromptTemplate = `Extract the key entities and their relationships from the text below.

Rules:
- Return between 3 and 10 entities, the most important ones only.
- Entity type must be one of: person, org, concept, term.
- Every relation must connect two entities from your entity list.
- Respond with JSON only, no prose, matching this shape:
{"entities":[{"label":"...","type":"..."}],"relations":[{"source":"...","target":"...","relation":"..."}]}

Text:
%s`

type extractedEntity struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

type extractedRelation struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Extraction is the validated result of one extraction call.
type Extraction struct {
	Entities  []extractedEntity
	Relations []extractedRelation
}

// Extractor pulls entities and relations out of chunk text with a JSON-mode
// model call.
type Extractor struct {
	gen ai.IGenerator
}

func NewExtractor(gen ai.IGenerator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract runs one extraction over the leading window of text. Model output
// that is not valid JSON of the expected shape is an error; the caller treats
// per-chunk failures as skips, not ingestion failures.
func (e *Extractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	window := text
	if len(window) > extractWindowChars {
		window = window[:extractWindowChars]
	}
	raw, err := e.gen.Generate(ctx, fmt.Sprintf(extractPromptTemplate, window))
	if err != nil {
		return nil, err
	}
	return parseExtraction(raw)
}

// QueryEntities extracts the entities a user question mentions, for matching
// against graph nodes. Extraction failures are logged and swallowed; a query
// the model cannot parse simply contributes no graph context.
func (e *Extractor) QueryEntities(ctx context.Context, query string) []string {
	ex, err := e.Extract(ctx, query)
	if err != nil {
		logutil.GetLogger(ctx).Debug("query entity extraction failed", zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(ex.Entities))
	for _, ent := range ex.Entities {
		ids = append(ids, entityID(ent.Label))
	}
	return ids
}

func parseExtraction(raw string) (*Extraction, error) {
	var payload struct {
		Entities  []extractedEntity   `json:"entities"`
		Relations []extractedRelation `json:"relations"`
	}
	if err := llmjson.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}

	out := &Extraction{}
	seen := make(map[string]struct{})
	for _, ent := range payload.Entities {
		label := strings.TrimSpace(ent.Label)
		if label == "" {
			continue
		}
		id := entityID(label)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.Entities = append(out.Entities, extractedEntity{Label: label, Type: normalizeEntityType(ent.Type)})
		if len(out.Entities) >= maxEntitiesPerCall {
			break
		}
	}
	for _, rel := range payload.Relations {
		if strings.TrimSpace(rel.Source) == "" || strings.TrimSpace(rel.Target) == "" {
			continue
		}
		relation := strings.TrimSpace(rel.Relation)
		if relation == "" {
			relation = "related_to"
		}
		out.Relations = append(out.Relations, extractedRelation{
			Source:   strings.TrimSpace(rel.Source),
			Target:   strings.TrimSpace(rel.Target),
			Relation: relation,
		})
	}
	return out, nil
}

func normalizeEntityType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "person":
		return "person"
	case "org", "organization", "company":
		return "org"
	case "term":
		return "term"
	default:
		return "concept"
	}
}

// Apply merges an extraction into the graph. Relations referencing entities
// outside the extraction's own list are dropped by AddRelation.
func (g *Graph) Apply(ctx context.Context, ex *Extraction, docSource string) {
	added, dropped := 0, 0
	for _, ent := range ex.Entities {
		g.AddEntity(ent.Label, ent.Type, docSource)
	}
	for _, rel := range ex.Relations {
		if g.AddRelation(rel.Source, rel.Target, rel.Relation, docSource) {
			added++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		logutil.GetLogger(ctx).Debug("dropped dangling graph relations",
			zap.Int("added", added), zap.Int("dropped", dropped), zap.String("doc_source", docSource))
	}
}

