// Package dedup merges near-duplicate emotion notes.
package dedup

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rcliao/chat-memory/internal/embedding"
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
)

// Defaults for Options.
const (
	DefaultThreshold      = 0.92
	DefaultShortTextRunes = 64
)

// Options configures duplicate detection.
type Options struct {
	// Threshold is the cosine similarity at or above which two notes are
	// duplicates.
	Threshold float64
	// ShortTextRunes bounds the texts for which substring containment
	// counts as a duplicate.
	ShortTextRunes int
	// DryRun plans merges without applying them.
	DryRun bool
	Logger *slog.Logger
}

// Group is one set of duplicates. Survivor is the earliest-created note.
type Group struct {
	Survivor string   `json:"survivor"`
	Merged   []string `json:"merged"`
	Tags     []string `json:"tags"`
}

// Report summarizes a run.
type Report struct {
	RunID   string  `json:"run_id"`
	Scanned int     `json:"scanned"`
	Removed int     `json:"removed"`
	Groups  []Group `json:"groups"`
	DryRun  bool    `json:"dry_run,omitempty"`
}

// Maintainer runs deduplication passes over a store.
type Maintainer struct {
	store store.Store
	opts  Options
}

// New creates a maintainer, filling unset options with defaults.
func New(s store.Store, opts Options) *Maintainer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.ShortTextRunes <= 0 {
		opts.ShortTextRunes = DefaultShortTextRunes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Maintainer{store: s, opts: opts}
}

// Run reads every emotion note, groups duplicates and merges each group
// into its earliest note in one batch. Running it again without new notes
// changes nothing.
func (m *Maintainer) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), Groups: []Group{}, DryRun: m.opts.DryRun}
	logger := m.opts.Logger.With("run_id", rep.RunID)

	err := m.store.Batch(ctx, func(tx store.Tx) error {
		notes, err := tx.List(ctx, store.ListParams{Kinds: []model.Kind{model.KindEmotionNote}})
		if err != nil {
			return err
		}
		rep.Scanned = len(notes)
		rep.Groups = m.Plan(notes)
		if m.opts.DryRun {
			return nil
		}

		byID := make(map[string]model.Record, len(notes))
		for _, n := range notes {
			byID[n.ID] = n
		}
		for _, g := range rep.Groups {
			survivor := byID[g.Survivor]
			if !slices.Equal(survivor.Tags, g.Tags) {
				survivor.Tags = g.Tags
				if err := tx.Update(ctx, survivor); err != nil {
					return err
				}
			}
			for _, id := range g.Merged {
				if err := tx.Remove(ctx, id); err != nil {
					return err
				}
				rep.Removed++
			}
			logger.Info("merged duplicate notes", "survivor", g.Survivor, "removed", g.Merged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("dedup finished", "scanned", rep.Scanned, "groups", len(rep.Groups), "removed", rep.Removed)
	return rep, nil
}

// Plan groups duplicate notes. notes must be in creation order. Groups are
// the transitive closure of duplicate pairs; only groups with more than one
// note are returned.
func (m *Maintainer) Plan(notes []model.Record) []Group {
	norms := make([]string, len(notes))
	for i, n := range notes {
		norms[i] = NormalizeText(n.Text)
	}

	parent := make([]int, len(notes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// the lower index is the earlier note and stays the root
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for i := range notes {
		for j := i + 1; j < len(notes); j++ {
			if m.duplicate(notes[i], notes[j], norms[i], norms[j]) {
				union(i, j)
			}
		}
	}

	members := map[int][]int{}
	for i := range notes {
		r := find(i)
		members[r] = append(members[r], i)
	}

	var groups []Group
	for i := range notes {
		idx, ok := members[i]
		if !ok || len(idx) < 2 {
			continue
		}
		g := Group{Survivor: notes[i].ID, Merged: []string{}}
		var tags []string
		for _, j := range idx {
			tags = model.UnionTags(tags, notes[j].Tags)
			if j != i {
				g.Merged = append(g.Merged, notes[j].ID)
			}
		}
		g.Tags = tags
		groups = append(groups, g)
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups
}

func (m *Maintainer) duplicate(a, b model.Record, na, nb string) bool {
	if na != "" && na == nb {
		return true
	}
	if len(a.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) &&
		embedding.CosineSimilarity(a.Embedding, b.Embedding) >= m.opts.Threshold {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	short := m.opts.ShortTextRunes
	if utf8.RuneCountInString(na) > short || utf8.RuneCountInString(nb) > short {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// NormalizeText lowercases text, drops punctuation and collapses
// whitespace.
func NormalizeText(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}
