package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/rcliao/chat-memory/internal/metadata"
	"github.com/rcliao/chat-memory/internal/model"
)

// FlatFileStore implements Store on the metadata file alone. Retrieval is
// keyword based and records carry no embeddings.
type FlatFileStore struct {
	mu     sync.RWMutex
	meta   *metadata.Store
	seq    *sequencer
	logger *slog.Logger
}

// OpenFlatFileStore opens the metadata-only store in opts.Dir.
func OpenFlatFileStore(opts Options) (*FlatFileStore, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	meta, err := metadata.Open(opts.metadataPath())
	if err != nil {
		return nil, err
	}
	return &FlatFileStore{
		meta:   meta,
		seq:    newSequencer(lastCreated(meta)),
		logger: opts.logger(),
	}, nil
}

func (s *FlatFileStore) Backend() string { return "flatfile" }

func (s *FlatFileStore) Get(ctx context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().Get(ctx, id)
}

func (s *FlatFileStore) List(ctx context.Context, p ListParams) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().List(ctx, p)
}

func (s *FlatFileStore) QuerySimilar(ctx context.Context, p QueryParams) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx().QuerySimilar(ctx, p)
}

func (s *FlatFileStore) AddMemory(ctx context.Context, p AddParams) (*model.Record, error) {
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

func (s *FlatFileStore) Remove(ctx context.Context, id string) error {
	return s.Batch(ctx, func(tx Tx) error { return tx.Remove(ctx, id) })
}

func (s *FlatFileStore) Update(ctx context.Context, r model.Record) error {
	return s.Batch(ctx, func(tx Tx) error { return tx.Update(ctx, r) })
}

func (s *FlatFileStore) AppendCorePrompt(ctx context.Context, line string, autonomous bool) (*model.Record, bool, error) {
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

func (s *FlatFileStore) SetCoreUpdateAllowed(ctx context.Context, allowed bool) error {
	return s.Batch(ctx, func(tx Tx) error { return setCoreUpdateAllowed(ctx, tx, allowed) })
}

func (s *FlatFileStore) Batch(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.tx()
	if err := fn(tx); err != nil {
		if tx.dirty {
			s.restore()
		}
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := s.meta.Persist(); err != nil {
		s.restore()
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

func (s *FlatFileStore) Close() error { return nil }

func (s *FlatFileStore) tx() *flatTx { return &flatTx{s: s} }

func (s *FlatFileStore) restore() {
	if err := s.meta.Load(); err != nil {
		s.logger.Error("reload metadata", "err", err)
	}
}

type flatTx struct {
	s     *FlatFileStore
	dirty bool
}

func (t *flatTx) Get(ctx context.Context, id string) (*model.Record, error) {
	r, err := t.s.meta.Get(id)
	if err != nil {
		return nil, &NotFoundError{ID: id}
	}
	return &r, nil
}

func (t *flatTx) List(ctx context.Context, p ListParams) ([]model.Record, error) {
	return listRecords(t.s.meta, p), nil
}

func (t *flatTx) QuerySimilar(ctx context.Context, p QueryParams) ([]Match, error) {
	allowed := queryKinds(p.Kinds)
	var candidates []model.Record
	for r := range t.s.meta.All() {
		if allowed[r.Kind] {
			candidates = append(candidates, r)
		}
	}
	return keywordSearch(candidates, p.Text, p.K), nil
}

func (t *flatTx) AddMemory(ctx context.Context, p AddParams) (*model.Record, error) {
	if err := validateAdd(p); err != nil {
		return nil, err
	}
	id, at := t.s.seq.next()
	rec := newRecord(id, at, p)
	t.s.meta.Put(id, rec)
	t.dirty = true
	return &rec, nil
}

func (t *flatTx) Remove(ctx context.Context, id string) error {
	if !t.s.meta.Has(id) {
		return &NotFoundError{ID: id}
	}
	t.s.meta.Delete(id)
	t.dirty = true
	return nil
}

func (t *flatTx) Update(ctx context.Context, r model.Record) error {
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
