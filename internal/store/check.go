package store

import (
	"context"
	"fmt"
	"sort"
)

// CheckReport lists ids present on only one side of a vector store.
type CheckReport struct {
	MetadataOnly []string `json:"metadata_only"`
	IndexOnly    []string `json:"index_only"`
	Reindexed    int      `json:"reindexed,omitempty"`
	Pruned       int      `json:"pruned,omitempty"`
}

// Clean reports whether no drift was found.
func (r *CheckReport) Clean() bool {
	return len(r.MetadataOnly) == 0 && len(r.IndexOnly) == 0
}

// Check compares the index and metadata without changing either.
func (s *VectorStore) Check(ctx context.Context) (*CheckReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(), nil
}

func (s *VectorStore) check() *CheckReport {
	rep := &CheckReport{MetadataOnly: []string{}, IndexOnly: []string{}}
	for r := range s.meta.All() {
		if !s.idx.Has(r.ID) {
			rep.MetadataOnly = append(rep.MetadataOnly, r.ID)
		}
	}
	for _, id := range s.idx.IDs() {
		if !s.meta.Has(id) {
			rep.IndexOnly = append(rep.IndexOnly, id)
		}
	}
	sort.Strings(rep.MetadataOnly)
	return rep
}

// Repair re-embeds metadata-only records into the index and removes
// index-only ids, then persists.
func (s *VectorStore) Repair(ctx context.Context) (*CheckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := s.check()
	if rep.Clean() {
		return rep, nil
	}

	for _, id := range rep.MetadataOnly {
		r, err := s.meta.Get(id)
		if err != nil {
			continue
		}
		vec, err := s.embedder.Embed(ctx, r.Text)
		if err != nil {
			s.restore(s.tx())
			return rep, fmt.Errorf("embed %s: %w", id, err)
		}
		if err := s.idx.Insert(ctx, id, vec); err != nil {
			s.restore(s.tx())
			return rep, fmt.Errorf("reindex %s: %w", id, err)
		}
		rep.Reindexed++
	}
	for _, id := range rep.IndexOnly {
		if err := s.idx.Remove(ctx, id); err != nil {
			s.restore(s.tx())
			return rep, fmt.Errorf("prune %s: %w", id, err)
		}
		rep.Pruned++
	}

	if err := s.persist(); err != nil {
		s.restore(s.tx())
		return rep, err
	}
	s.logger.Info("store repaired", "reindexed", rep.Reindexed, "pruned", rep.Pruned)
	return rep, nil
}
