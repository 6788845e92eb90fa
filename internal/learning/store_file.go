package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the learning data as one JSON document. Every write
// rewrites the file through a temporary file and a rename.
type FileStore struct {
	path string
	mu   sync.Mutex
	data *Snapshot
}

// NewFileStore creates the parent directory of path if needed
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create error store directory: %w", err)
	}
	return &FileStore{path: path, data: newSnapshot()}, nil
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty store.
func (s *FileStore) Load(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newSnapshot()
		return copySnapshot(s.data), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read error store: %w", err)
	}

	data, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode error store %s: %w", s.path, err)
	}
	s.data = data
	return copySnapshot(s.data), nil
}

func decodeSnapshot(raw []byte) (*Snapshot, error) {
	data := newSnapshot()
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}
	if data.Patterns == nil {
		data.Patterns = make(map[string]*ErrorPattern)
	}
	if data.Selectors == nil {
		data.Selectors = make(map[string]*SelectorRecord)
	}
	return data, nil
}

// SavePattern stores pattern and rewrites the file
func (s *FileStore) SavePattern(_ context.Context, pattern *ErrorPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Patterns[pattern.ErrorID] = pattern.clone()
	return s.flush()
}

// DeletePatterns removes patterns and rewrites the file
func (s *FileStore) DeletePatterns(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data.Patterns, id)
	}
	return s.flush()
}

// SaveSelector stores record and rewrites the file
func (s *FileStore) SaveSelector(_ context.Context, record *SelectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *record
	s.data.Selectors[selectorKey(r.Field, r.Selector)] = &r
	return s.flush()
}

// Close does nothing; every write is already on disk
func (s *FileStore) Close() error { return nil }

func (s *FileStore) flush() error {
	body, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode error store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write error store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace error store: %w", err)
	}
	return nil
}
