package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/ragchat/internal/model"
)

var memoryHeaders = map[string]string{
	model.MemoryTargetUser:    "# User Memory\n\nFacts and preferences learned about this user.\n",
	model.MemoryTargetCompany: "# Company Memory\n\nOrganization level knowledge distilled from conversations.\n",
}

// Store keeps per-user memory logs as append-only markdown files. The whole
// file is read back verbatim as prompt context, so the format stays plain.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) userDir(userID string) string {
	return filepath.Join(s.dataDir, "memory", "user_"+userID)
}

func (s *Store) path(userID string, target string) (string, error) {
	if _, ok := memoryHeaders[target]; !ok {
		return "", fmt.Errorf("unknown memory target: %s", target)
	}
	return filepath.Join(s.userDir(userID), target+".md"), nil
}

// Clear removes one memory log. Clearing a log that was never written is not
// an error.
func (s *Store) Clear(userID string, target string) error {
	path, err := s.path(userID, target)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read returns the memory log for a target, or "" when none exists yet.
func (s *Store) Read(userID string, target string) (string, error) {
	path, err := s.path(userID, target)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Append adds one dated entry, creating the file with its header on first
// write.
func (s *Store) Append(userID string, target, summary string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return fmt.Errorf("empty memory summary")
	}
	path, err := s.path(userID, target)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		if _, err := f.WriteString(memoryHeaders[target]); err != nil {
			return err
		}
	}
	entry := fmt.Sprintf("\n- [%s] %s\n", time.Now().Format("2006-01-02"), summary)
	_, err = f.WriteString(entry)
	return err
}

// ContextBlock renders both memory logs as one prompt section. Empty logs
// produce an empty block.
func (s *Store) ContextBlock(userID string) (string, error) {
	var parts []string
	for _, target := range []string{model.MemoryTargetUser, model.MemoryTargetCompany} {
		text, err := s.Read(userID, target)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n\n"), nil
}
