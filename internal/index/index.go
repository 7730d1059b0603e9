// Package index provides the nearest-neighbor vector index backing the
// memory store. It wraps an embedded chromem-go collection and persists the
// whole index to a single gob file.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "memories"

var (
	// ErrDuplicateID is returned when inserting an id that is already indexed.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrDimensionMismatch is returned for vectors of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DuplicateIDError reports an insert collision.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string { return fmt.Sprintf("duplicate id %q", e.ID) }
func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// Neighbor is one query hit. Distance is cosine distance (1 - similarity),
// so smaller is closer.
type Neighbor struct {
	ID       string
	Distance float64
}

// Index is a cosine-metric vector index with a fixed dimensionality.
// Vectors are stored normalized to unit length.
type Index struct {
	mu      sync.RWMutex
	db      *chromem.DB
	col     *chromem.Collection
	dims    int
	path    string
	vectors map[string][]float32 // mirror of indexed ids for lookups
}

// New creates an empty in-memory index persisted at path.
func New(path string, dims int) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("index dims must be positive, got %d", dims)
	}
	ix := &Index{path: path, dims: dims}
	if err := ix.reset(); err != nil {
		return nil, err
	}
	return ix, nil
}

// Open creates an index at path and loads it when the file exists.
func Open(path string, dims int) (*Index, error) {
	ix, err := New(path, dims)
	if err != nil {
		return nil, err
	}
	if err := ix.Load(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) reset() error {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	ix.db = db
	ix.col = col
	ix.vectors = make(map[string][]float32)
	return nil
}

// Dims returns the fixed vector dimensionality.
func (ix *Index) Dims() int { return ix.dims }

// Path returns the persistence file path.
func (ix *Index) Path() string { return ix.path }

// Len returns the number of indexed ids.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Has reports whether id is indexed.
func (ix *Index) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.vectors[id]
	return ok
}

// Vector returns a copy of the stored (normalized) vector for id.
func (ix *Index) Vector(id string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	v, ok := ix.vectors[id]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// IDs returns all indexed ids in sorted order.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.vectors))
	for id := range ix.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Insert adds id with its embedding.
func (ix *Index) Insert(ctx context.Context, id string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("insert: empty id")
	}
	if err := ix.checkVector(vec); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.vectors[id]; exists {
		return &DuplicateIDError{ID: id}
	}

	unit := normalize(vec)
	err := ix.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   id,
		Embedding: unit,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	// mirror what the collection holds so lookups match a later Load
	if doc, err := ix.col.GetByID(ctx, id); err == nil {
		unit = doc.Embedding
	}
	ix.vectors[id] = unit
	return nil
}

// Remove deletes id. Removing an absent id is a no-op.
func (ix *Index) Remove(ctx context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.vectors[id]; !exists {
		return nil
	}
	if err := ix.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	delete(ix.vectors, id)
	return nil
}

// Query returns up to k nearest ids by ascending distance. Ties are broken
// by id so results are stable across persist/load.
//
// The collection is always asked for every document: for a smaller nResults
// it keeps an arbitrary subset of the documents tied at the k-th distance.
func (ix *Index) Query(ctx context.Context, vec []float32, k int) ([]Neighbor, error) {
	if err := ix.checkVector(vec); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.vectors)
	if k <= 0 || n == 0 {
		return []Neighbor{}, nil
	}
	results, err := ix.col.QueryEmbedding(ctx, normalize(vec), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	out := make([]Neighbor, 0, len(results))
	for _, r := range results {
		out = append(out, Neighbor{ID: r.ID, Distance: 1 - float64(r.Similarity)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Persist writes the whole index to its file, replacing it atomically.
func (ix *Index) Persist() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	dir := filepath.Dir(ix.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	// keep the extension so chromem-go detects compression the same way on import
	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(ix.path))
	compress := strings.HasSuffix(ix.path, ".gz")
	if err := ix.db.ExportToFile(tmp, compress, ""); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export index: %w", err)
	}
	if err := os.Rename(tmp, ix.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory index with the contents of its file. A
// missing file loads as empty.
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, err := os.Stat(ix.path); err != nil {
		if os.IsNotExist(err) {
			return ix.reset()
		}
		return fmt.Errorf("stat index: %w", err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(ix.path, ""); err != nil {
		return fmt.Errorf("import index: %w", err)
	}
	col := db.GetCollection(collectionName, nil)
	if col == nil {
		var err error
		col, err = db.CreateCollection(collectionName, nil, nil)
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	vectors := make(map[string][]float32, col.Count())
	if n := col.Count(); n > 0 {
		// chromem-go has no iteration API; a query for every document returns them all.
		probe := make([]float32, ix.dims)
		probe[0] = 1
		all, err := col.QueryEmbedding(context.Background(), probe, n, nil, nil)
		if err != nil {
			if strings.Contains(err.Error(), "length") {
				return fmt.Errorf("load index: %w (want %d)", ErrDimensionMismatch, ix.dims)
			}
			return fmt.Errorf("scan index: %w", err)
		}
		for _, r := range all {
			if len(r.Embedding) != ix.dims {
				return fmt.Errorf("load index: %w: id %s has %d dims, want %d",
					ErrDimensionMismatch, r.ID, len(r.Embedding), ix.dims)
			}
			vectors[r.ID] = r.Embedding
		}
	}

	ix.db = db
	ix.col = col
	ix.vectors = vectors
	return nil
}

func (ix *Index) checkVector(vec []float32) error {
	if len(vec) != ix.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), ix.dims)
	}
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return fmt.Errorf("vector has no direction")
	}
	return nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
