// Package migrate converts a legacy flat-file memory directory into store
// records. Runs are resumable: every migrated entry is recorded in a ledger
// under a key derived from its normalized text, and entries already present
// are skipped.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rcliao/chat-memory/internal/legacy"
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
)

// DefaultBatchSize is the number of entries stored per persisted batch.
const DefaultBatchSize = 100

// EntryError reports a legacy entry that was skipped because it could not
// be parsed or stored.
type EntryError struct {
	Ref string
	Err error
}

func (e *EntryError) Error() string { return fmt.Sprintf("entry %s: %v", e.Ref, e.Err) }
func (e *EntryError) Unwrap() error { return e.Err }

// Report summarizes a run.
type Report struct {
	RunID    string `json:"run_id"`
	Migrated int    `json:"migrated"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	// KnownKeys is the ledger size after the run.
	KnownKeys int      `json:"known_keys"`
	Errors    []string `json:"errors,omitempty"`
}

// Tool migrates legacy entries into a store.
type Tool struct {
	Store      store.Store
	LedgerPath string
	// MaxRunes splits longer entries; zero uses legacy.DefaultMaxRunes.
	MaxRunes int
	// BatchSize bounds how many entries are written per persisted batch.
	BatchSize int
	// AllowCoreUpdates sets core_update_allowed on migrated core prompt
	// lines.
	AllowCoreUpdates bool
	Logger           *slog.Logger
}

// DerivedKey identifies a legacy entry by kind and normalized text.
func DerivedKey(kind model.Kind, text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(string(kind) + "\x00" + norm))
	return hex.EncodeToString(sum[:])
}

// Run migrates every legacy entry in dataDir not migrated before.
func (t *Tool) Run(ctx context.Context, dataDir string) (*Report, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := t.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	scan, err := legacy.Scan(dataDir, legacy.Options{MaxRunes: t.MaxRunes})
	if err != nil {
		return nil, err
	}

	ledger, err := OpenLedger(t.LedgerPath)
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	rep := &Report{RunID: uuid.NewString()}
	logger = logger.With("run_id", rep.RunID)
	if err := ledger.StartRun(ctx, rep.RunID, dataDir); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	if err := t.seed(ctx, ledger, rep.RunID); err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}
	done, err := ledger.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	for _, pe := range scan.Errors {
		t.fail(logger, rep, &EntryError{Ref: refOf(pe), Err: pe.Err})
	}

	entries := scan.Entries
	for start := 0; start < len(entries); start += batchSize {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		end := min(start+batchSize, len(entries))
		if err := t.migrateBatch(ctx, ledger, logger, rep, done, entries[start:end]); err != nil {
			return rep, err
		}
	}

	if n, err := ledger.Count(ctx); err != nil {
		logger.Warn("count ledger keys", "err", err)
	} else {
		rep.KnownKeys = n
	}
	if err := ledger.FinishRun(ctx, rep); err != nil {
		logger.Warn("record run totals", "err", err)
	}
	logger.Info("migration finished",
		"migrated", rep.Migrated, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

// seed records keys for everything already in the store, so a discarded
// ledger never causes duplicates.
func (t *Tool) seed(ctx context.Context, ledger *Ledger, runID string) error {
	existing, err := t.Store.List(ctx, store.ListParams{})
	if err != nil {
		return err
	}
	rows := make([]Row, 0, len(existing))
	for _, r := range existing {
		rows = append(rows, Row{Key: DerivedKey(r.Kind, r.Text), MemoryID: r.ID, Source: r.Source})
	}
	return ledger.Record(ctx, runID, rows)
}

func (t *Tool) migrateBatch(ctx context.Context, ledger *Ledger, logger *slog.Logger, rep *Report, done map[string]bool, entries []legacy.Entry) error {
	var (
		rows     []Row
		migrated int
		skipped  int
		failures []*EntryError
	)
	err := t.Store.Batch(ctx, func(tx store.Tx) error {
		for _, e := range entries {
			key := DerivedKey(e.Kind, e.Text)
			if done[key] {
				skipped++
				continue
			}
			rec, err := tx.AddMemory(ctx, store.AddParams{
				Text:              e.Text,
				Kind:              e.Kind,
				Role:              e.Role,
				Tags:              e.Tags,
				Source:            e.Source,
				OccurredAt:        e.OccurredAt,
				CoreUpdateAllowed: e.Kind == model.KindCorePromptLine && t.AllowCoreUpdates,
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures = append(failures, &EntryError{Ref: e.Ref(), Err: err})
				continue
			}
			rows = append(rows, Row{Key: key, MemoryID: rec.ID, Source: e.Ref()})
			done[key] = true
			migrated++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store batch: %w", err)
	}

	if err := ledger.Record(ctx, rep.RunID, rows); err != nil {
		// the store already holds these; the next run reseeds them
		logger.Warn("record migrated keys", "err", err)
	}
	rep.Migrated += migrated
	rep.Skipped += skipped
	for _, f := range failures {
		t.fail(logger, rep, f)
	}
	return nil
}

func (t *Tool) fail(logger *slog.Logger, rep *Report, err *EntryError) {
	rep.Failed++
	rep.Errors = append(rep.Errors, err.Error())
	logger.Warn("skipping legacy entry", "entry", err.Ref, "err", err.Err)
}

func refOf(pe *legacy.ParseError) string {
	if pe.Position == "" {
		return pe.Source
	}
	return pe.Source + "#" + pe.Position
}
