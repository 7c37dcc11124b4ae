// Package history keeps a SQLite index of benchmark runs under the artifacts root
// so past runs can be listed without walking run directories.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/daryltucker/forest-bench/internal/model"
)

// DefaultFile is the database name created at the artifacts root.
const DefaultFile = "history.db"

// Fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	run_path    TEXT NOT NULL,
	filter      TEXT,
	evaluate    INTEGER NOT NULL,
	cancelled   INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run          TEXT NOT NULL,
	full_name    TEXT NOT NULL,
	is_baseline  INTEGER NOT NULL,
	success      INTEGER NOT NULL,
	error_kind   TEXT,
	calls        INTEGER NOT NULL,
	tokens       INTEGER NOT NULL,
	latency_ms   REAL NOT NULL,
	duration_s   REAL NOT NULL,
	quality_avg  REAL,
	FOREIGN KEY (run) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS results_run ON results(run);
`

// Store is the run history database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run describes one suite invocation.
type Run struct {
	RunID     string
	Prompt    string
	RunPath   string
	Filter    string
	Evaluate  bool
	Cancelled bool
	CreatedAt time.Time
}

// Summary is one row of ListRuns.
type Summary struct {
	ID         string
	RunID      string
	Prompt     string
	RunPath    string
	Evaluate   bool
	Cancelled  bool
	CreatedAt  time.Time
	Candidates int
	Succeeded  int
	// AvgQuality is nil when no result in the run was scored.
	AvgQuality *float64
}

// Entry is one stored candidate result.
type Entry struct {
	FullName   string
	IsBaseline bool
	Success    bool
	ErrorKind  string
	Calls      int
	Tokens     int
	LatencyMs  float64
	Duration   time.Duration
	Quality    *float64
}

// RecordRun stores a run and its results in one transaction and returns the record id.
func (s *Store) RecordRun(ctx context.Context, run Run, results []model.RunResult) (string, error) {
	id := uuid.New().String()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, run_id, prompt, run_path, filter, evaluate, cancelled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.RunID, run.Prompt, run.RunPath, run.Filter, run.Evaluate, run.Cancelled,
		run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, r := range results {
		var quality any
		if r.QualityScore != nil {
			quality = r.QualityScore.Average()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO results (run, full_name, is_baseline, success, error_kind, calls, tokens, latency_ms, duration_s, quality_avg)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, r.FullName(), r.IsBaseline, r.Success, r.ErrorKind,
			r.Metrics.TotalCalls, r.Metrics.TotalTokens, r.Metrics.TotalLatencyMs,
			r.Duration.Seconds(), quality,
		)
		if err != nil {
			return "", fmt.Errorf("insert result %s: %w", r.FullName(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.run_id, r.prompt, r.run_path, r.evaluate, r.cancelled, r.created_at,
		       COUNT(x.id), COALESCE(SUM(x.success), 0), AVG(x.quality_avg)
		FROM runs r
		LEFT JOIN results x ON x.run = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sm      Summary
			created string
			quality sql.NullFloat64
		)
		if err := rows.Scan(&sm.ID, &sm.RunID, &sm.Prompt, &sm.RunPath, &sm.Evaluate, &sm.Cancelled,
			&created, &sm.Candidates, &sm.Succeeded, &quality); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sm.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if quality.Valid {
			q := quality.Float64
			sm.AvgQuality = &q
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Results returns the stored results of one run in insertion order.
func (s *Store) Results(ctx context.Context, id string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT full_name, is_baseline, success, COALESCE(error_kind, ''), calls, tokens, latency_ms, duration_s, quality_avg
		FROM results WHERE run = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			secs    float64
			quality sql.NullFloat64
		)
		if err := rows.Scan(&e.FullName, &e.IsBaseline, &e.Success, &e.ErrorKind, &e.Calls, &e.Tokens,
			&e.LatencyMs, &secs, &quality); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		e.Duration = time.Duration(secs * float64(time.Second))
		if quality.Valid {
			q := quality.Float64
			e.Quality = &q
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
