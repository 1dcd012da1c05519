// Package ledger records the last known stage of every attachment transfer in
// a SQLite file so later runs can skip work that already completed.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is the ledger row for one (project, issue, filename) triple.
type Entry struct {
	ProjectKey   string
	IssueKey     string
	Filename     string
	AttachmentID string
	Size         int64
	Stage        string
	LastError    string
	ObjectKey    string
	UpdatedAt    time.Time
}

// Ledger is a SQLite backed transfer ledger. It is safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			project_key   TEXT NOT NULL,
			issue_key     TEXT NOT NULL,
			filename      TEXT NOT NULL,
			attachment_id TEXT NOT NULL,
			size          INTEGER NOT NULL,
			stage         TEXT NOT NULL,
			last_error    TEXT NOT NULL DEFAULT '',
			object_key    TEXT NOT NULL DEFAULT '',
			updated_at    INTEGER NOT NULL,
			PRIMARY KEY (project_key, issue_key, filename)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_stage ON transfers(stage)`,
	}
	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// Get returns the entry for the triple. found is false when no row exists.
func (l *Ledger) Get(ctx context.Context, projectKey, issueKey, filename string) (e Entry, found bool, err error) {
	var updated int64
	err = l.db.QueryRowContext(ctx,
		`SELECT project_key, issue_key, filename, attachment_id, size, stage, last_error, object_key, updated_at
		   FROM transfers
		  WHERE project_key = ? AND issue_key = ? AND filename = ?`,
		projectKey, issueKey, filename,
	).Scan(&e.ProjectKey, &e.IssueKey, &e.Filename, &e.AttachmentID, &e.Size, &e.Stage, &e.LastError, &e.ObjectKey, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading ledger entry: %w", err)
	}
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, true, nil
}

// Put inserts or replaces the entry for its triple.
func (l *Ledger) Put(ctx context.Context, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transfers (project_key, issue_key, filename, attachment_id, size, stage, last_error, object_key, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (project_key, issue_key, filename) DO UPDATE SET
			attachment_id = excluded.attachment_id,
			size          = excluded.size,
			stage         = excluded.stage,
			last_error    = excluded.last_error,
			object_key    = excluded.object_key,
			updated_at    = excluded.updated_at`,
		e.ProjectKey, e.IssueKey, e.Filename, e.AttachmentID, e.Size, e.Stage, e.LastError, e.ObjectKey, e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing ledger entry: %w", err)
	}
	return nil
}

// CountByStage returns how many rows sit in each stage.
func (l *Ledger) CountByStage(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM transfers GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("counting ledger stages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scanning ledger stage: %w", err)
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}
