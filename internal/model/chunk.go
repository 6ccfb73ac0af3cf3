package model

// ParentChunk is a structurally coherent section of a source document, stored
// verbatim in sqlite and used to expand retrieved children back to full context.
type ParentChunk struct {
	DocID     string `json:"doc_id"`
	ParentIdx int    `json:"parent_idx"`
	Source    string `json:"source"`
	Section   string `json:"section"`
	Page      int    `json:"page"` // 0 means no page (non-PDF input)
	Text      string `json:"text"`
}

// ChildChunk is a sentence-bounded passage carved from a parent. Children are
// the unit of embedding and lexical indexing; they can always be regenerated
// from their parents.
type ChildChunk struct {
	DocID     string `json:"doc_id"`
	ParentIdx int    `json:"parent_idx"`
	ChildIdx  int    `json:"child_idx"`
	Source    string `json:"source"`
	Section   string `json:"section"`
	Page      int    `json:"page"`
	Text      string `json:"text"`
}

// ParentKey addresses a parent chunk inside one user's corpus.
type ParentKey struct {
	DocID     string
	ParentIdx int
}

func (c ChildChunk) ParentKey() ParentKey {
	return ParentKey{DocID: c.DocID, ParentIdx: c.ParentIdx}
}
