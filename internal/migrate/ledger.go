package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LedgerFile is the default ledger name inside the data directory.
const LedgerFile = "migration.db"

// Ledger maps derived legacy keys to the memory ids created for them. It is
// auxiliary state: deleting it is safe because it is reseeded from the
// store on the next run.
type Ledger struct {
	db *sql.DB
}

// Row is one ledger entry.
type Row struct {
	Key      string
	MemoryID string
	Source   string
}

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS migrated (
		key         TEXT PRIMARY KEY,
		memory_id   TEXT NOT NULL,
		source      TEXT,
		run_id      TEXT NOT NULL,
		migrated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_migrated_memory ON migrated(memory_id);

	CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		data_dir    TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		migrated    INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Keys returns every recorded key.
func (l *Ledger) Keys(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT key FROM migrated`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := map[string]bool{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// Count returns the number of recorded keys.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM migrated`).Scan(&n)
	return n, err
}

// Record stores rows in one transaction. Existing keys are kept.
func (l *Ledger) Record(ctx context.Context, runID string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO migrated (key, memory_id, source, run_id, migrated_at)
			 VALUES (?, ?, ?, ?, ?)`, r.Key, r.MemoryID, r.Source, runID, now)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.Key, err)
		}
	}
	return tx.Commit()
}

// StartRun records the start of a run.
func (l *Ledger) StartRun(ctx context.Context, runID, dataDir string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, data_dir, started_at) VALUES (?, ?, ?)`,
		runID, dataDir, time.Now().UTC().Format(time.RFC3339))
	return err
}

// FinishRun stores the final counts of a run.
func (l *Ledger) FinishRun(ctx context.Context, rep *Report) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, migrated = ?, skipped = ?, failed = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339), rep.Migrated, rep.Skipped, rep.Failed, rep.RunID)
	return err
}

// Close closes the ledger.
func (l *Ledger) Close() error {
	return l.db.Close()
}
