// Package state records finished passes (SQLite ledger) and serves the latest one over HTTP.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/snapetech/strmsync/internal/reconcile"
)

const schema = `
CREATE TABLE IF NOT EXISTS passes (
	run_id         TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL,
	layout         TEXT NOT NULL,
	dry_run        INTEGER NOT NULL DEFAULT 0,
	movies_added   INTEGER NOT NULL DEFAULT 0,
	live_added     INTEGER NOT NULL DEFAULT 0,
	series_added   INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	report         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS passes_finished ON passes(finished_at);
`

// Ledger is an append-only table of pass reports.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record stores rep. Recording the same run twice replaces the earlier row.
func (l *Ledger) Record(ctx context.Context, rep reconcile.Report) error {
	blob, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	dry := 0
	if rep.DryRun {
		dry = 1
	}
	failed := rep.Movies.Failed + rep.Live.Failed + rep.Series.Failed
	_, err = l.db.ExecContext(ctx, `INSERT OR REPLACE INTO passes
		(run_id, started_at, finished_at, layout, dry_run, movies_added, live_added, series_added, failed, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Started.UnixMilli(), rep.Finished.UnixMilli(), rep.Layout, dry,
		rep.Movies.Added, rep.Live.Added, rep.Series.Added, failed, string(blob))
	if err != nil {
		return fmt.Errorf("ledger: insert: %w", err)
	}
	return nil
}

// Recent returns up to n reports, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]reconcile.Report, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.db.QueryContext(ctx, `SELECT report FROM passes ORDER BY finished_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()
	var out []reconcile.Report
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		var rep reconcile.Report
		if err := json.Unmarshal([]byte(blob), &rep); err != nil {
			return nil, fmt.Errorf("ledger: decode: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Last returns the newest report, or false when the ledger is empty.
func (l *Ledger) Last(ctx context.Context) (reconcile.Report, bool, error) {
	reps, err := l.Recent(ctx, 1)
	if err != nil || len(reps) == 0 {
		return reconcile.Report{}, false, err
	}
	return reps[0], true, nil
}

// Prune deletes passes that finished before cutoff and returns how many were removed.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM passes WHERE finished_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("ledger: prune: %w", err)
	}
	return res.RowsAffected()
}
