package store

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerMonotonic(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := newSequencer(fixed.Add(time.Hour))
	q.now = func() time.Time { return fixed }

	prevID, prevAt := q.next()
	for range 100 {
		id, at := q.next()
		assert.True(t, at.After(prevAt))
		assert.Greater(t, id, prevID)
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
		prevID, prevAt = id, at
	}
}
