package index

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/xxxsen/ragchat/internal/model"
)

const (
	denseIndexFile = "dense_index.json"
	corpusFile     = "bm25_corpus.json"
	graphFile      = "knowledge_graph.json"
)

// Entry is one embedded child chunk in a user's dense index.
type Entry struct {
	Chunk     model.ChildChunk `json:"chunk"`
	Embedding []float32        `json:"embedding"`
}

// Store owns the per-user index artifacts on disk. Every user gets an
// isolated directory; nothing in this package ever reads across users.
type Store struct {
	dataDir string
}

func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) UserDir(userID string) string {
	return filepath.Join(s.dataDir, "vectorstore", "user_"+userID)
}

func (s *Store) GraphPath(userID string) string {
	return filepath.Join(s.UserDir(userID), graphFile)
}

// HasIndex reports whether the user has any indexed content.
func (s *Store) HasIndex(userID string) bool {
	entries, err := s.LoadDense(userID)
	return err == nil && len(entries) > 0
}

// LoadDense returns the user's dense index, or nil when none exists yet.
func (s *Store) LoadDense(userID string) ([]Entry, error) {
	var entries []Entry
	if err := s.readJSON(filepath.Join(s.UserDir(userID), denseIndexFile), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) SaveDense(userID string, entries []Entry) error {
	return s.writeJSON(userID, denseIndexFile, entries)
}

// AppendDense adds newly embedded chunks to the existing index.
func (s *Store) AppendDense(userID string, entries []Entry) error {
	existing, err := s.LoadDense(userID)
	if err != nil {
		return err
	}
	return s.SaveDense(userID, append(existing, entries...))
}

// LoadCorpus returns the user's lexical corpus, or nil when none exists yet.
func (s *Store) LoadCorpus(userID string) ([]model.ChildChunk, error) {
	var chunks []model.ChildChunk
	if err := s.readJSON(filepath.Join(s.UserDir(userID), corpusFile), &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *Store) SaveCorpus(userID string, chunks []model.ChildChunk) error {
	return s.writeJSON(userID, corpusFile, chunks)
}

func (s *Store) AppendCorpus(userID string, chunks []model.ChildChunk) error {
	existing, err := s.LoadCorpus(userID)
	if err != nil {
		return err
	}
	return s.SaveCorpus(userID, append(existing, chunks...))
}

// DeleteDoc removes every chunk belonging to docID from both artifacts.
// Artifacts that become empty are removed so HasIndex turns false again.
func (s *Store) DeleteDoc(userID string, docID string) error {
	entries, err := s.LoadDense(userID)
	if err != nil {
		return err
	}
	keptEntries := entries[:0]
	for _, e := range entries {
		if e.Chunk.DocID != docID {
			keptEntries = append(keptEntries, e)
		}
	}
	if len(keptEntries) == 0 {
		if err := s.removeArtifact(userID, denseIndexFile); err != nil {
			return err
		}
	} else if err := s.SaveDense(userID, keptEntries); err != nil {
		return err
	}

	chunks, err := s.LoadCorpus(userID)
	if err != nil {
		return err
	}
	keptChunks := chunks[:0]
	for _, c := range chunks {
		if c.DocID != docID {
			keptChunks = append(keptChunks, c)
		}
	}
	if len(keptChunks) == 0 {
		return s.removeArtifact(userID, corpusFile)
	}
	return s.SaveCorpus(userID, keptChunks)
}

func (s *Store) removeArtifact(userID string, name string) error {
	err := os.Remove(filepath.Join(s.UserDir(userID), name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) readJSON(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// writeJSON writes through a temp file and renames it into place so a crash
// mid-write never corrupts an index.
func (s *Store) writeJSON(userID string, name string, v interface{}) error {
	dir := s.UserDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, name+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}
