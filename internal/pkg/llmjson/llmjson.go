package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFence removes a markdown code fence wrapper and any surrounding prose
// from model output, leaving the outermost JSON object.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// Unmarshal decodes model output into dst after stripping fences and prose.
func Unmarshal(raw string, dst interface{}) error {
	if err := json.Unmarshal([]byte(StripFence(raw)), dst); err != nil {
		return fmt.Errorf("parse model json output: %w", err)
	}
	return nil
}
