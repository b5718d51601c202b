// Package store persists generated plans in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// timeLayout has a fixed width so that created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	run_id      TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	document    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at);
`

// Summary is one row of List, without the plan document
type Summary struct {
	RunID       string      `json:"run_id"`
	Name        string      `json:"name"`
	Status      plan.Status `json:"status"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store is a plan repository backed by SQLite. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and migrates the schema
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreOpen, "create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, fmt.Sprintf("open %s", path), err)
	}

	// SQLite allows one writer; an in-memory database also lives on a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrCodeStoreOpen, "set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, "migrate schema", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database location
func (s *Store) Path() string { return s.path }

// Save inserts or replaces the plan under its run ID
func (s *Store) Save(ctx context.Context, p *plan.Plan) error {
	if p == nil || p.RunID == "" {
		return errors.New(errors.ErrCodeStoreQuery, "plan has no run id")
	}

	doc, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "encode plan", err)
	}
	fp, err := p.Fingerprint()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "fingerprint plan", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (run_id, name, status, fingerprint, created_at, document)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			fingerprint = excluded.fingerprint,
			created_at = excluded.created_at,
			document = excluded.document`,
		p.RunID, p.Name, string(p.Status), fp, p.CreatedAt.UTC().Format(timeLayout), string(doc))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "save plan "+p.RunID, err)
	}
	return nil
}

// Get loads the plan stored under runID
func (s *Store) Get(ctx context.Context, runID string) (*plan.Plan, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM plans WHERE run_id = ?`, runID).Scan(&doc)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeStoreNotFound, fmt.Sprintf("no plan with run id %s", runID)).
			WithSuggestion("Run 'plansmith runs list' to see stored runs")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "load plan "+runID, err)
	}

	var p plan.Plan
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "decode plan "+runID, err)
	}
	return &p, nil
}

// List returns the newest plans first. A limit <= 0 returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT run_id, name, status, fingerprint, created_at FROM plans ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "list plans", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			status  string
			created string
		)
		if err := rows.Scan(&sum.RunID, &sum.Name, &status, &sum.Fingerprint, &created); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan plan row", err)
		}
		sum.Status = plan.Status(status)
		if sum.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "parse created_at of "+sum.RunID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "list plans", err)
	}
	return out, nil
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}
