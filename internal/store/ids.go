package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// sequencer hands out ULIDs with strictly increasing creation times.
type sequencer struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	last    time.Time
	now     func() time.Time
}

func newSequencer(last time.Time) *sequencer {
	return &sequencer{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		last:    last,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (q *sequencer) next() (string, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := q.now()
	if !t.After(q.last) {
		t = q.last.Add(time.Microsecond)
	}
	q.last = t
	return ulid.MustNew(ulid.Timestamp(t), q.entropy).String(), t
}
