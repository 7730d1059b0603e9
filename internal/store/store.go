// Package store provides the memory store contract and its two variants: a
// vector-backed store that keeps an embedding index and the metadata file
// consistent, and a metadata-only flat-file store with keyword retrieval.
package store

import (
	"context"
	"time"

	"github.com/rcliao/chat-memory/internal/model"
)

// AddParams holds parameters for adding a memory.
type AddParams struct {
	Text              string
	Kind              model.Kind
	Role              string
	Tags              []string
	Source            string
	OccurredAt        *time.Time
	CoreUpdateAllowed bool
}

// ListParams holds parameters for listing memories. Results are always in
// chronological order.
type ListParams struct {
	Kinds  []model.Kind // empty means every kind
	Tags   []string     // records must carry all of these
	Limit  int
	Newest bool // with Limit, keep the newest records instead of the oldest
}

// QueryParams holds parameters for a similarity query.
type QueryParams struct {
	Text string
	K    int
	// Kinds restricts results. Empty means DefaultQueryKinds.
	Kinds []model.Kind
}

// Match is a query hit. Distance is cosine distance for the vector store
// and keyword distance for the flat-file store; smaller is closer.
type Match struct {
	model.Record
	Distance float64 `json:"distance"`
}

// DefaultQueryKinds excludes core prompt lines, which assembly includes
// unconditionally.
var DefaultQueryKinds = []model.Kind{
	model.KindConversationTurn,
	model.KindEmotionNote,
	model.KindDiaryEntry,
}

// Reader is the read side of a store.
type Reader interface {
	// Get returns the record for id, or a *NotFoundError.
	Get(ctx context.Context, id string) (*model.Record, error)

	// List returns records matching the filters.
	List(ctx context.Context, p ListParams) ([]model.Record, error)

	// QuerySimilar returns up to K records ordered by ascending distance.
	QuerySimilar(ctx context.Context, p QueryParams) ([]Match, error)
}

// Writer is the write side of a store.
type Writer interface {
	// AddMemory embeds and stores a new record and returns it.
	AddMemory(ctx context.Context, p AddParams) (*model.Record, error)

	// Remove deletes id. Metadata is the source of truth for existence.
	Remove(ctx context.Context, id string) error

	// Update rewrites the mutable fields (text, tags, flags) of an existing
	// record. The embedding, kind and creation time are kept.
	Update(ctx context.Context, r model.Record) error
}

// Tx is the view of a store passed to Batch.
type Tx interface {
	Reader
	Writer
}

// Store defines the memory store interface.
type Store interface {
	Tx

	// AppendCorePrompt appends line as a core prompt line. Autonomous
	// appends require the head core prompt line to allow updates. The
	// returned bool is false when an identical line already exists.
	AppendCorePrompt(ctx context.Context, line string, autonomous bool) (*model.Record, bool, error)

	// SetCoreUpdateAllowed sets the update permission on the head core
	// prompt line.
	SetCoreUpdateAllowed(ctx context.Context, allowed bool) error

	// Batch runs fn with exclusive access and persists once at the end.
	// If fn fails, the store is restored to its last persisted state.
	Batch(ctx context.Context, fn func(Tx) error) error

	// Stats returns store statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Backend names the variant ("vector" or "flatfile").
	Backend() string

	// Close closes the store.
	Close() error
}
