// Package metadata provides the id-keyed record store persisted as a single
// human-readable JSON document.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rcliao/chat-memory/internal/model"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("record not found")

// Store maps record ids to records. Embeddings are not kept here.
type Store struct {
	mu      sync.RWMutex
	path    string
	records map[string]model.Record
}

// New creates an empty store persisted at path.
func New(path string) *Store {
	return &Store{path: path, records: make(map[string]model.Record)}
}

// Open creates a store at path and loads it when the file exists.
func Open(path string) (*Store, error) {
	s := New(path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the persistence file path.
func (s *Store) Path() string { return s.path }

// Put stores r under id, overwriting any existing record.
func (s *Store) Put(id string, r model.Record) {
	r.ID = id
	r.Embedding = nil
	r.Tags = slices.Clone(r.Tags)

	s.mu.Lock()
	s.records[id] = r
	s.mu.Unlock()
}

// Get returns the record for id.
func (s *Store) Get(id string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Tags = slices.Clone(r.Tags)
	return r, nil
}

// Has reports whether id is stored.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Delete removes id. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns every record ordered by creation time, then id. Each
// iteration takes a fresh snapshot, so the sequence can be ranged over
// again and callers may modify the store while ranging.
func (s *Store) All() iter.Seq[model.Record] {
	return func(yield func(model.Record) bool) {
		for _, r := range s.snapshot() {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *Store) snapshot() []model.Record {
	s.mu.RLock()
	out := make([]model.Record, 0, len(s.records))
	for _, r := range s.records {
		r.Tags = slices.Clone(r.Tags)
		out = append(out, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Persist writes all records to the store file, replacing it atomically.
func (s *Store) Persist() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename metadata file: %w", err)
	}
	return nil
}

// Load replaces the in-memory records with the contents of the store file.
// A missing file loads as empty.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.records = make(map[string]model.Record)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read metadata: %w", err)
	}

	records := make(map[string]model.Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}
	for id, r := range records {
		if r.ID != id {
			r.ID = id
			records[id] = r
		}
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}
