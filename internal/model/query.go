package model

type Citation struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Section    string `json:"section"`
	Page       int    `json:"page,omitempty"`
	Excerpt    string `json:"excerpt"`
}

// AskResult is the terminal payload of one answered query.
type AskResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Cached    bool       `json:"cached,omitempty"`
}

// QueryFilters narrow retrieval candidates by chunk metadata. Zero values mean
// no constraint; Page uses 0 as unset since pages are 1-based.
type QueryFilters struct {
	Source  string `json:"source,omitempty"`
	Section string `json:"section,omitempty"`
	Page    int    `json:"page,omitempty"`
}

func (f QueryFilters) Empty() bool {
	return f.Source == "" && f.Section == "" && f.Page == 0
}
