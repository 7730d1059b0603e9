package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/chat-memory/internal/embedding"
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
)

type mapEmbedder map[string]embedding.Vector

func (m mapEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	if v, ok := m[text]; ok {
		return v, nil
	}
	return embedding.Vector{0, 1, 0}, nil
}

func (m mapEmbedder) Dims() int { return 3 }

func newTestStore(t *testing.T, e embedding.Embedder) store.Store {
	t.Helper()
	s, err := store.Open(store.Options{Dir: t.TempDir(), Embedder: e})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func add(t *testing.T, s store.Store, text string, tags ...string) *model.Record {
	t.Helper()
	rec, err := s.AddMemory(context.Background(), store.AddParams{Text: text, Kind: model.KindEmotionNote, Tags: tags})
	require.NoError(t, err)
	return rec
}

func notes(t *testing.T, s store.Store) []model.Record {
	t.Helper()
	all, err := s.List(context.Background(), store.ListParams{Kinds: []model.Kind{model.KindEmotionNote}})
	require.NoError(t, err)
	return all
}

func TestMergeSimilarNotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, mapEmbedder{
		"excited about trip":      {1, 0, 0},
		"really excited for trip": {0.98, 0.2, 0},
		"quarterly tax filing":    {0, 0, 1},
	})
	first := add(t, s, "excited about trip", "joy")
	add(t, s, "really excited for trip", "trip", "joy", "anticipation")
	add(t, s, "quarterly tax filing", "chore")

	rep, err := New(s, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Scanned)
	assert.Equal(t, 1, rep.Removed)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, first.ID, rep.Groups[0].Survivor)

	left := notes(t, s)
	require.Len(t, left, 2)
	assert.Equal(t, first.ID, left[0].ID)
	assert.Equal(t, "excited about trip", left[0].Text)
	assert.ElementsMatch(t, []string{"joy", "trip", "anticipation"}, left[0].Tags)
	assert.Equal(t, []string{"chore"}, left[1].Tags)

	// a second pass finds nothing to do
	again, err := New(s, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Removed)
	assert.Empty(t, again.Groups)
	assert.Equal(t, left, notes(t, s))
}

func TestTransitiveGroups(t *testing.T) {
	ctx := context.Background()
	// a~b and b~c above 0.92, a and c below it
	s := newTestStore(t, mapEmbedder{
		"a": {1, 0, 0},
		"b": {0.96, 0.28, 0},
		"c": {0.85, 0.53, 0},
	})
	a := add(t, s, "a", "x")
	add(t, s, "b", "y")
	add(t, s, "c", "z")

	rep, err := New(s, Options{}).Run(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, a.ID, rep.Groups[0].Survivor)
	assert.Len(t, rep.Groups[0].Merged, 2)

	left := notes(t, s)
	require.Len(t, left, 1)
	assert.Equal(t, []string{"x", "y", "z"}, left[0].Tags)
}

func TestTextHeuristicsWithoutEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	first := add(t, s, "Miss you!", "longing")
	add(t, s, "miss   you", "sad")
	add(t, s, "I really miss you", "love")
	add(t, s, "we had a long talk about the house and how we want to furnish every single room of it", "home")
	add(t, s, "a long talk", "x")

	rep, err := New(s, Options{}).Run(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, first.ID, rep.Groups[0].Survivor)
	assert.Equal(t, []string{"longing", "sad", "love"}, rep.Groups[0].Tags)

	// long texts never match by containment
	assert.Len(t, notes(t, s), 3)
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	add(t, s, "same", "a")
	add(t, s, "Same.", "b")

	rep, err := New(s, Options{DryRun: true}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, 0, rep.Removed)
	assert.Len(t, notes(t, s), 2)
}

func TestOtherKindsUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	for range 2 {
		_, err := s.AddMemory(ctx, store.AddParams{Text: "hello", Kind: model.KindConversationTurn})
		require.NoError(t, err)
	}
	rep, err := New(s, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Scanned)

	all, err := s.List(ctx, store.ListParams{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "excited about trip", NormalizeText("  Excited, about   TRIP!! "))
	assert.Equal(t, "привет мир", NormalizeText("Привет — мир…"))
	assert.Equal(t, "", NormalizeText("?!"))
}
