// Package sqlite persists history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_documents (
	location    TEXT PRIMARY KEY,
	recorded_at DATETIME NOT NULL
);`

// Store keeps one row per processed document location.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens path and creates the schema when missing.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns every recorded location.
func (s *Store) Load(ctx context.Context) (gazette.HistorySet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT location FROM processed_documents`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	set := gazette.NewHistorySet()
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		set.Add(loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return set, nil
}

// Save inserts locations not yet stored. History only grows, so rows absent
// from set are kept.
func (s *Store) Save(ctx context.Context, set gazette.HistorySet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO processed_documents (location, recorded_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC()
	for _, loc := range set.Sorted() {
		if _, err := stmt.ExecContext(ctx, loc, now); err != nil {
			return fmt.Errorf("insert %s: %w", loc, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
