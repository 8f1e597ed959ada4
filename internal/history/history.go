// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records export runs in a SQLite database so failed
// objects can be tracked across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/informatica-export/pkg/types"
)

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Run is one recorded export run.
type Run struct {
	ID         int64     `yaml:"id"`
	Repository string    `yaml:"repository"`
	Query      string    `yaml:"query"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Exported   int       `yaml:"exported"`
	Failed     int       `yaml:"failed"`
}

// ErrRunNotFound is returned by Run for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const runColumns = `id, repository, query, started_at, finished_at, exported, failed`

// Open opens or creates the history database at path and creates the
// schema if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repository TEXT NOT NULL,
			query TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			exported INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS objects (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			number INTEGER NOT NULL,
			folder TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			subtype TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_objects_identity ON objects(folder, type, name)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores summary and its outcomes in one transaction and returns the
// run ID.
func (s *Store) Record(ctx context.Context, summary types.RunSummary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (repository, query, started_at, finished_at, exported, failed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.Repository, summary.Query,
		summary.StartedAt.UTC().Format(time.RFC3339), summary.FinishedAt.UTC().Format(time.RFC3339),
		summary.Succeeded(), summary.Failed(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO objects (run_id, number, folder, name, type, subtype, path, status, exit_code, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing object insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range summary.Outcomes {
		t := o.Target
		if _, err := stmt.ExecContext(ctx, runID, o.Number, t.Folder, t.Name, t.Type, t.Subtype,
			t.Path, string(o.Status), o.ExitCode, nullString(o.Error)); err != nil {
			return 0, fmt.Errorf("inserting object %d: %w", o.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns the run with the given ID.
func (s *Store) Run(ctx context.Context, id int64) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return r, err
}

func scanRun(sc rowScanner) (Run, error) {
	var r Run
	var started, finished string
	if err := sc.Scan(&r.ID, &r.Repository, &r.Query, &started, &finished, &r.Exported, &r.Failed); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return Run{}, fmt.Errorf("scanning run %d started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
		return Run{}, fmt.Errorf("scanning run %d finished_at: %w", r.ID, err)
	}
	return r, nil
}

// FailedObjects returns the objects that failed in run runID, in export
// order.
func (s *Store) FailedObjects(ctx context.Context, runID int64) ([]types.ObjectOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, folder, name, type, subtype, path, status, exit_code, COALESCE(error, '')
		 FROM objects WHERE run_id = ? AND status = ? ORDER BY number`,
		runID, string(types.ExportFailed))
	if err != nil {
		return nil, fmt.Errorf("querying failed objects: %w", err)
	}
	defer rows.Close()

	var out []types.ObjectOutcome
	for rows.Next() {
		var o types.ObjectOutcome
		var status string
		t := &o.Target
		if err := rows.Scan(&o.Number, &t.Folder, &t.Name, &t.Type, &t.Subtype, &t.Path,
			&status, &o.ExitCode, &o.Error); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		o.Status = types.ExportStatus(status)
		t.Dir = filepath.Dir(t.Path)
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
