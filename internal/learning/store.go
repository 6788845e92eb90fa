package learning

import (
	"context"
	"sync"
)

// Snapshot is the persisted state of the learning store
type Snapshot struct {
	Patterns  map[string]*ErrorPattern   `json:"patterns"`
	Selectors map[string]*SelectorRecord `json:"selectors"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Patterns:  make(map[string]*ErrorPattern),
		Selectors: make(map[string]*SelectorRecord),
	}
}

// Store persists error patterns and selector records
type Store interface {
	// Load returns everything persisted so far
	Load(ctx context.Context) (*Snapshot, error)

	// SavePattern inserts or replaces a pattern
	SavePattern(ctx context.Context, pattern *ErrorPattern) error

	// DeletePatterns removes patterns by id
	DeletePatterns(ctx context.Context, ids []string) error

	// SaveSelector inserts or replaces a selector record
	SaveSelector(ctx context.Context, record *SelectorRecord) error

	// Close releases the backend
	Close() error
}

// MemoryStore keeps everything in process. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.Mutex
	data *Snapshot
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newSnapshot()}
}

// Load returns a copy of the stored data
func (s *MemoryStore) Load(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.data), nil
}

// SavePattern stores a copy of pattern
func (s *MemoryStore) SavePattern(_ context.Context, pattern *ErrorPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Patterns[pattern.ErrorID] = pattern.clone()
	return nil
}

// DeletePatterns removes patterns by id
func (s *MemoryStore) DeletePatterns(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data.Patterns, id)
	}
	return nil
}

// SaveSelector stores a copy of record
func (s *MemoryStore) SaveSelector(_ context.Context, record *SelectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *record
	s.data.Selectors[selectorKey(r.Field, r.Selector)] = &r
	return nil
}

// Close does nothing
func (s *MemoryStore) Close() error { return nil }

func copySnapshot(src *Snapshot) *Snapshot {
	dst := newSnapshot()
	for id, p := range src.Patterns {
		dst.Patterns[id] = p.clone()
	}
	for key, r := range src.Selectors {
		record := *r
		dst.Selectors[key] = &record
	}
	return dst
}
