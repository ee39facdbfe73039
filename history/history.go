// Package history keeps a SQLite record of every migcheck run and its
// comparison rows.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/migcheck/compare"
	"github.com/hazyhaar/migcheck/dbopen"
	"github.com/hazyhaar/migcheck/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	source      TEXT NOT NULL,
	target      TEXT NOT NULL,
	query       TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	report_path TEXT NOT NULL DEFAULT '',
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_rows (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	doc_id    TEXT NOT NULL,
	in_source INTEGER NOT NULL,
	in_target INTEGER NOT NULL,
	target    TEXT NOT NULL,
	expected  TEXT NOT NULL,
	got       TEXT NOT NULL,
	status    TEXT NOT NULL,
	reason    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Run is one recorded comparison run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string
	Target     string
	Query      string
	Strategy   string
	ReportPath string
	Total      int
	Passed     int
	Failed     int
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Store reads and writes run history.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return New(db), nil
}

// New wraps db, which must already carry Schema.
func New(db *sql.DB) *Store {
	return &Store{db: db, newID: idgen.Prefixed("run_", idgen.UUIDv7())}
}

// Schema returns the DDL of the history tables.
func Schema() string { return schema }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores run and its rows in one transaction. An empty run.ID is
// filled with a new identifier, which is returned. Counts are derived from
// rows.
func (s *Store) Record(ctx context.Context, run Run, rows []compare.Row) (string, error) {
	if run.ID == "" {
		run.ID = s.newID()
	}
	sum := compare.Summarize(rows)
	run.Total, run.Passed, run.Failed = sum.Total, sum.Passed, sum.Failed

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, finished_at, source, target, query, strategy, report_path, total, passed, failed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
			run.Source, run.Target, run.Query, run.Strategy, run.ReportPath,
			run.Total, run.Passed, run.Failed,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_rows (run_id, seq, doc_id, in_source, in_target, target, expected, got, status, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare rows: %w", err)
		}
		defer stmt.Close()
		for i, r := range rows {
			if _, err := stmt.ExecContext(ctx, run.ID, i, r.ID, r.InSource, r.InTarget,
				r.Target, r.Expected, r.Got, string(r.Status), r.Reason); err != nil {
				return fmt.Errorf("insert row %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("history: record: %w", err)
	}
	return run.ID, nil
}

// Recent lists up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rs, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source, target, query, strategy, report_path, total, passed, failed
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rs.Close()

	var out []Run
	for rs.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rs.Scan(&r.ID, &started, &finished, &r.Source, &r.Target, &r.Query,
			&r.Strategy, &r.ReportPath, &r.Total, &r.Passed, &r.Failed); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		out = append(out, r)
	}
	return out, rs.Err()
}

// Rows returns the rows of runID in processing order.
func (s *Store) Rows(ctx context.Context, runID string) ([]compare.Row, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT doc_id, in_source, in_target, target, expected, got, status, reason
		 FROM run_rows WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	defer rs.Close()

	var out []compare.Row
	for rs.Next() {
		var (
			r      compare.Row
			status string
		)
		if err := rs.Scan(&r.ID, &r.InSource, &r.InTarget, &r.Target, &r.Expected, &r.Got, &status, &r.Reason); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		r.Status = compare.Status(status)
		out = append(out, r)
	}
	return out, rs.Err()
}
