package model

const (
	MemoryTargetUser    = "USER_MEMORY"
	MemoryTargetCompany = "COMPANY_MEMORY"
)

// MemoryDecision is the judged outcome of one conversation turn. Only the
// summary of an accepted decision is ever persisted.
type MemoryDecision struct {
	ShouldWrite bool    `json:"should_write"`
	Target      string  `json:"target"`
	Summary     string  `json:"summary"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// MemoryWrite reports what, if anything, the gate persisted for a turn.
type MemoryWrite struct {
	Written bool   `json:"written"`
	Target  string `json:"target,omitempty"`
	Summary string `json:"summary,omitempty"`
}
