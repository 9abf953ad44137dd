// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runstore persists harvest reports in a SQLite database so past
// runs can be listed and inspected.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/harvester/pkg/types"
)

const dbFile = "runs.db"

var (
	ErrNotFound  = errors.New("run not found")
	ErrAmbiguous = errors.New("run id prefix matches more than one run")
)

// Store manages the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Dir/runs.db.
func Open(cfg types.RunsConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "runs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			rule_set TEXT NOT NULL,
			rule_set_version TEXT,
			endpoint TEXT,
			started TEXT NOT NULL,
			finished TEXT,
			source_total INTEGER,
			total_identified INTEGER,
			successful INTEGER,
			failed INTEGER,
			errors INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_rule_set ON runs(rule_set, started)`,
		`CREATE TABLE IF NOT EXISTS run_records (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			record_id TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_records_run ON run_records(run_id)`,
		`CREATE TABLE IF NOT EXISTS run_messages (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			time TEXT NOT NULL,
			level TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_messages_run ON run_messages(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const (
	statusStored = "stored"
	statusFailed = "failed"
)

// Save writes r, replacing any earlier copy of the same run.
func (s *Store) Save(ctx context.Context, r *types.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, r.RunID); err != nil {
		return fmt.Errorf("replacing run %s: %w", r.RunID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, rule_set, rule_set_version, endpoint, started, finished,
			source_total, total_identified, successful, failed, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.RuleSet, r.RuleSetVersion, r.Endpoint,
		formatTime(r.Started), formatTime(r.Finished),
		r.SourceTotal, r.TotalIdentified, r.SuccessCount(), r.FailedCount(),
		len(r.MessagesAt(types.LevelError)),
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_records (run_id, seq, record_id, status, reason) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer recStmt.Close()

	seq := 0
	for _, id := range r.Successful {
		if _, err := recStmt.ExecContext(ctx, r.RunID, seq, id, statusStored, nil); err != nil {
			return fmt.Errorf("inserting record %s: %w", id, err)
		}
		seq++
	}
	for _, id := range r.FailedIDs() {
		if _, err := recStmt.ExecContext(ctx, r.RunID, seq, id, statusFailed, r.Failed[id]); err != nil {
			return fmt.Errorf("inserting record %s: %w", id, err)
		}
		seq++
	}

	msgStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_messages (run_id, seq, time, level, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer msgStmt.Close()

	for i, m := range r.Messages {
		if _, err := msgStmt.ExecContext(ctx, r.RunID, i, formatTime(m.Time), string(m.Level), m.Text); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	return tx.Commit()
}

// Summary is one row of the run list.
type Summary struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	RuleSet        string    `json:"rule_set" yaml:"rule_set"`
	RuleSetVersion string    `json:"rule_set_version" yaml:"rule_set_version"`
	Endpoint       string    `json:"endpoint" yaml:"endpoint"`
	Started        time.Time `json:"started" yaml:"started"`
	Finished       time.Time `json:"finished" yaml:"finished"`
	SourceTotal    int64     `json:"source_total" yaml:"source_total"`
	Identified     int       `json:"identified" yaml:"identified"`
	Successful     int       `json:"successful" yaml:"successful"`
	Failed         int       `json:"failed" yaml:"failed"`
	Errors         int       `json:"errors" yaml:"errors"`
}

// Duration returns how long the run took.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// ListOptions filters List.
type ListOptions struct {
	// RuleSet restricts the list to one rule set.
	RuleSet string
	// Limit caps the number of rows (default 20).
	Limit int
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, rule_set, rule_set_version, endpoint, started, finished,
		source_total, total_identified, successful, failed, errors FROM runs`
	var args []any
	if opts.RuleSet != "" {
		query += ` WHERE rule_set = ?`
		args = append(args, opts.RuleSet)
	}
	query += ` ORDER BY started DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum               Summary
			started, finished string
		)
		if err := rows.Scan(&sum.RunID, &sum.RuleSet, &sum.RuleSetVersion, &sum.Endpoint,
			&started, &finished, &sum.SourceTotal, &sum.Identified,
			&sum.Successful, &sum.Failed, &sum.Errors); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		sum.Started = parseTime(started)
		sum.Finished = parseTime(finished)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads the full report of the run whose id starts with prefix.
func (s *Store) Get(ctx context.Context, prefix string) (*types.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, rule_set, rule_set_version, endpoint, started, finished, source_total, total_identified
		 FROM runs WHERE substr(run_id, 1, length(?)) = ? LIMIT 2`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", prefix, err)
	}
	var (
		found             []*types.Report
		started, finished string
	)
	for rows.Next() {
		r := &types.Report{Failed: make(map[string]string)}
		if err := rows.Scan(&r.RunID, &r.RuleSet, &r.RuleSetVersion, &r.Endpoint,
			&started, &finished, &r.SourceTotal, &r.TotalIdentified); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started = parseTime(started)
		r.Finished = parseTime(finished)
		found = append(found, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
	r := found[0]

	if err := s.loadRecords(ctx, r); err != nil {
		return nil, err
	}
	if err := s.loadMessages(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) loadRecords(ctx context.Context, r *types.Report) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, status, COALESCE(reason, '') FROM run_records WHERE run_id = ? ORDER BY seq`, r.RunID)
	if err != nil {
		return fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, status, reason string
		if err := rows.Scan(&id, &status, &reason); err != nil {
			return fmt.Errorf("scanning record: %w", err)
		}
		if status == statusStored {
			r.Success(id)
		} else {
			r.Fail(id, reason)
		}
	}
	return rows.Err()
}

func (s *Store) loadMessages(ctx context.Context, r *types.Report) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, level, text FROM run_messages WHERE run_id = ? ORDER BY seq`, r.RunID)
	if err != nil {
		return fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ts, level, text string
		if err := rows.Scan(&ts, &level, &text); err != nil {
			return fmt.Errorf("scanning message: %w", err)
		}
		r.Messages = append(r.Messages, types.Message{Time: parseTime(ts), Level: types.Level(level), Text: text})
	}
	return rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
