package store

import (
	"context"
	"os"
	"sort"

	"github.com/rcliao/chat-memory/internal/model"
)

// Stats holds store statistics.
type Stats struct {
	Backend       string      `json:"backend"`
	MetadataPath  string      `json:"metadata_path"`
	MetadataBytes int64       `json:"metadata_bytes"`
	IndexPath     string      `json:"index_path,omitempty"`
	IndexBytes    int64       `json:"index_bytes,omitempty"`
	IndexedIDs    int         `json:"indexed_ids,omitempty"`
	Dims          int         `json:"dims,omitempty"`
	TotalRecords  int         `json:"total_records"`
	Kinds         []KindStats `json:"kinds"`
}

// KindStats holds per-kind counts.
type KindStats struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func (s *VectorStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := baseStats(s.meta.Path(), listRecords(s.meta, ListParams{}))
	st.Backend = s.Backend()
	st.IndexPath = s.idx.Path()
	st.IndexBytes = fileSize(st.IndexPath)
	st.IndexedIDs = s.idx.Len()
	st.Dims = s.idx.Dims()
	return st, nil
}

func (s *FlatFileStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := baseStats(s.meta.Path(), listRecords(s.meta, ListParams{}))
	st.Backend = s.Backend()
	return st, nil
}

func baseStats(path string, records []model.Record) *Stats {
	st := &Stats{
		MetadataPath:  path,
		MetadataBytes: fileSize(path),
		TotalRecords:  len(records),
		Kinds:         []KindStats{},
	}

	counts := map[string]int{}
	for _, r := range records {
		counts[string(r.Kind)]++
	}
	for k, n := range counts {
		st.Kinds = append(st.Kinds, KindStats{Kind: k, Count: n})
	}
	sort.Slice(st.Kinds, func(i, j int) bool {
		if st.Kinds[i].Count != st.Kinds[j].Count {
			return st.Kinds[i].Count > st.Kinds[j].Count
		}
		return st.Kinds[i].Kind < st.Kinds[j].Kind
	})
	return st
}

func fileSize(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}
