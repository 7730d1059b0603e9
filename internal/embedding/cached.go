package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached memoizes another embedder's vectors keyed by exact text. Migration
// re-runs and repeated queries then skip the provider round trip.
type Cached struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCached wraps next with a cache holding roughly maxVectors entries.
func NewCached(next Embedder, maxVectors int) (*Cached, error) {
	cost := int64(maxVectors) * int64(next.Dims()) * 4
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxVectors) * 10,
		MaxCost:     cost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		return append(Vector(nil), v.(Vector)...), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	stored := append(Vector(nil), vec...)
	c.cache.Set(text, stored, int64(len(stored))*4)
	return vec, nil
}

func (c *Cached) Dims() int { return c.next.Dims() }

// Wait blocks until pending cache writes are visible.
func (c *Cached) Wait() { c.cache.Wait() }

// Close releases the cache.
func (c *Cached) Close() error {
	c.cache.Close()
	return nil
}
