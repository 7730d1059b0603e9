package store

import (
	"errors"
	"fmt"

	"github.com/rcliao/chat-memory/internal/index"
)

var (
	// ErrNotFound is wrapped by NotFoundError.
	ErrNotFound = errors.New("memory not found")
	// ErrDrift marks an id present in only one of the index and metadata.
	ErrDrift = errors.New("index/metadata drift")
	// ErrCoreUpdateDenied is returned for an autonomous core prompt append
	// when the head core prompt line does not allow updates.
	ErrCoreUpdateDenied = errors.New("core prompt update not allowed")

	ErrDuplicateID       = index.ErrDuplicateID
	ErrDimensionMismatch = index.ErrDimensionMismatch
)

// NotFoundError reports a missing id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("memory %s not found", e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Sides of a drift.
const (
	MissingFromMetadata = "metadata"
	MissingFromIndex    = "index"
)

// DriftError reports an id missing from one side.
type DriftError struct {
	ID   string
	Side string // which sub-store lacks the id
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("memory %s missing from %s", e.ID, e.Side)
}
func (e *DriftError) Unwrap() error { return ErrDrift }
