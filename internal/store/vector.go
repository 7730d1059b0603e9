package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/rcliao/chat-memory/internal/embedding"
	"github.com/rcliao/chat-memory/internal/index"
	"github.com/rcliao/chat-memory/internal/metadata"
	"github.com/rcliao/chat-memory/internal/model"
)

// VectorStore implements Store over a vector index and a metadata file.
// Writes are serialized and persisted as one step; reads may run
// concurrently.
type VectorStore struct {
	mu            sync.RWMutex
	meta          *metadata.Store
	idx           *index.Index
	embedder      embedding.Embedder
	seq           *sequencer
	minSimilarity float64
	logger        *slog.Logger
}

// OpenVectorStore opens the vector-backed store in opts.Dir.
func OpenVectorStore(opts Options) (*VectorStore, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("vector store requires an embedder")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	meta, err := metadata.Open(opts.metadataPath())
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(opts.indexPath(), opts.Embedder.Dims())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	s := &VectorStore{
		meta:          meta,
		idx:           idx,
		embedder:      opts.Embedder,
		seq:           newSequencer(lastCreated(meta)),
		minSimilarity: opts.MinSimilarity,
		logger:        opts.logger(),
	}
	if rep := s.check(); !rep.Clean() {
		s.logger.Warn("index and metadata disagree, run repair",
			"metadata_only", len(rep.MetadataOnly), "index_only", len(rep.IndexOnly))
	}
	return s, nil
}

func (s *VectorStore) Backend() string { return "vector" }

func (s *VectorStore) Get(ctx context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().Get(ctx, id)
}

func (s *VectorStore) List(ctx context.Context, p ListParams) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().List(ctx, p)
}

func (s *VectorStore) QuerySimilar(ctx context.Context, p QueryParams) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().QuerySimilar(ctx, p)
}

func (s *VectorStore) AddMemory(ctx context.Context, p AddParams) (*model.Record, error) {
	var rec *model.Record
	err := s.Batch(ctx, func(tx Tx) error {
		var err error
		rec, err = tx.AddMemory(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *VectorStore) Remove(ctx context.Context, id string) error {
	return s.Batch(ctx, func(tx Tx) error { return tx.Remove(ctx, id) })
}

func (s *VectorStore) Update(ctx context.Context, r model.Record) error {
	return s.Batch(ctx, func(tx Tx) error { return tx.Update(ctx, r) })
}

func (s *VectorStore) AppendCorePrompt(ctx context.Context, line string, autonomous bool) (*model.Record, bool, error) {
	var (
		rec   *model.Record
		added bool
	)
	err := s.Batch(ctx, func(tx Tx) error {
		var err error
		rec, added, err = appendCorePrompt(ctx, tx, line, autonomous)
		return err
	})
	return rec, added, err
}

func (s *VectorStore) SetCoreUpdateAllowed(ctx context.Context, allowed bool) error {
	return s.Batch(ctx, func(tx Tx) error { return setCoreUpdateAllowed(ctx, tx, allowed) })
}

func (s *VectorStore) Batch(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.tx()
	if err := fn(tx); err != nil {
		if tx.dirty {
			s.restore(tx)
		}
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := s.persist(); err != nil {
		s.restore(tx)
		return err
	}
	return nil
}

// Close releases the embedder when it holds resources.
func (s *VectorStore) Close() error {
	if c, ok := s.embedder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *VectorStore) tx() *vectorTx { return &vectorTx{s: s, removed: map[string][]float32{}} }

// persist writes the index before the metadata. A failure in between leaves
// the two files disagreeing, which restore reconciles.
func (s *VectorStore) persist() error {
	if err := s.idx.Persist(); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := s.meta.Persist(); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

// restore reloads the last persisted state and reconciles the index with
// the metadata: index-only ids are dropped and ids removed by tx but still
// in the metadata get their vectors back. The index file is rewritten when
// anything changed.
func (s *VectorStore) restore(tx *vectorTx) {
	ctx := context.Background()
	if err := s.meta.Load(); err != nil {
		s.logger.Error("reload metadata", "err", err)
	}
	if err := s.idx.Load(); err != nil {
		s.logger.Error("reload index", "err", err)
	}

	changed := false
	for _, id := range s.idx.IDs() {
		if s.meta.Has(id) {
			continue
		}
		s.logger.Warn("dropping index-only id", "id", id)
		if err := s.idx.Remove(ctx, id); err != nil {
			s.logger.Error("drop index-only id", "id", id, "err", err)
			continue
		}
		changed = true
	}
	for r := range s.meta.All() {
		if s.idx.Has(r.ID) {
			continue
		}
		vec, ok := tx.removed[r.ID]
		if !ok {
			s.logger.Warn("metadata-only id after reload, run repair", "id", r.ID)
			continue
		}
		if err := s.idx.Insert(ctx, r.ID, vec); err != nil {
			s.logger.Error("reindex removed id", "id", r.ID, "err", err)
			continue
		}
		changed = true
	}
	if changed {
		if err := s.idx.Persist(); err != nil {
			s.logger.Error("rewrite index", "err", err)
		}
	}
}

// vectorTx runs store operations without locking. The caller holds the
// store lock.
type vectorTx struct {
	s     *VectorStore
	dirty bool
	// removed keeps the vectors of ids removed in this batch
	removed map[string][]float32
}

func (t *vectorTx) Get(ctx context.Context, id string) (*model.Record, error) {
	r, err := t.s.meta.Get(id)
	if err != nil {
		return nil, &NotFoundError{ID: id}
	}
	r.Embedding, _ = t.s.idx.Vector(id)
	return &r, nil
}

func (t *vectorTx) List(ctx context.Context, p ListParams) ([]model.Record, error) {
	out := listRecords(t.s.meta, p)
	for i := range out {
		out[i].Embedding, _ = t.s.idx.Vector(out[i].ID)
	}
	return out, nil
}

func (t *vectorTx) QuerySimilar(ctx context.Context, p QueryParams) ([]Match, error) {
	total := t.s.idx.Len()
	if p.K <= 0 || total == 0 {
		return []Match{}, nil
	}

	vec, err := t.s.embedder.Embed(ctx, p.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	allowed := queryKinds(p.Kinds)
	warned := map[string]bool{}
	fetch := p.K
	for {
		neighbors, err := t.s.idx.Query(ctx, vec, fetch)
		if err != nil {
			return nil, err
		}

		out := make([]Match, 0, p.K)
		cutoff := false
		for _, n := range neighbors {
			if t.s.minSimilarity > 0 && 1-n.Distance < t.s.minSimilarity {
				cutoff = true
				break
			}
			r, err := t.s.meta.Get(n.ID)
			if err != nil {
				if !warned[n.ID] {
					warned[n.ID] = true
					t.s.logger.Warn("skipping query hit",
						"id", n.ID, "err", &DriftError{ID: n.ID, Side: MissingFromMetadata})
				}
				continue
			}
			if !allowed[r.Kind] {
				continue
			}
			r.Embedding, _ = t.s.idx.Vector(n.ID)
			out = append(out, Match{Record: r, Distance: n.Distance})
			if len(out) == p.K {
				break
			}
		}

		// filtered or drifted hits may leave fewer than K; widen the search
		if len(out) == p.K || cutoff || fetch >= total {
			return out, nil
		}
		fetch *= 2
	}
}

func (t *vectorTx) AddMemory(ctx context.Context, p AddParams) (*model.Record, error) {
	if err := validateAdd(p); err != nil {
		return nil, err
	}

	vec, err := t.s.embedder.Embed(ctx, p.Text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) != t.s.idx.Dims() {
		return nil, fmt.Errorf("%w: embedder returned %d, index has %d",
			ErrDimensionMismatch, len(vec), t.s.idx.Dims())
	}

	id, at := t.s.seq.next()
	if t.s.meta.Has(id) {
		return nil, &index.DuplicateIDError{ID: id}
	}

	rec := newRecord(id, at, p)
	t.s.meta.Put(id, rec)
	if err := t.s.idx.Insert(ctx, id, vec); err != nil {
		t.s.meta.Delete(id)
		return nil, fmt.Errorf("index insert: %w", err)
	}
	t.dirty = true

	rec.Embedding, _ = t.s.idx.Vector(id)
	t.s.logger.Debug("memory added", "id", id, "kind", p.Kind)
	return &rec, nil
}

func (t *vectorTx) Remove(ctx context.Context, id string) error {
	old, err := t.s.meta.Get(id)
	if err != nil {
		return &NotFoundError{ID: id}
	}

	if vec, ok := t.s.idx.Vector(id); ok {
		t.removed[id] = vec
	}
	t.s.meta.Delete(id)
	if err := t.s.idx.Remove(ctx, id); err != nil {
		t.s.meta.Put(id, old)
		return fmt.Errorf("index remove: %w", err)
	}
	t.dirty = true
	t.s.logger.Debug("memory removed", "id", id)
	return nil
}

func (t *vectorTx) Update(ctx context.Context, r model.Record) error {
	old, err := t.s.meta.Get(r.ID)
	if err != nil {
		return &NotFoundError{ID: r.ID}
	}
	merged, err := mergeUpdate(old, r)
	if err != nil {
		return err
	}
	t.s.meta.Put(r.ID, merged)
	t.dirty = true
	return nil
}
