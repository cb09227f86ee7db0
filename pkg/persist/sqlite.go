package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	kind     TEXT    NOT NULL,
	id       TEXT    NOT NULL,
	position INTEGER NOT NULL,
	body     BLOB    NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_order ON documents (kind, position);
`

// OpenSQLite opens (or creates) an SQLite database at path with WAL
// journaling and a busy timeout. Use ":memory:" for an ephemeral database.
// The pool is limited to one connection: writes are rare whole-collection
// replacements and an in-memory database only exists per connection.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("persist: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("persist: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(documentsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: create schema: %w", err)
	}

	return db, nil
}

// SQLiteTable persists one kind of document (e.g. "anchor") as rows of the
// shared documents table. Row order is the collection order.
type SQLiteTable[T any] struct {
	db   *sql.DB
	kind string
	id   func(T) string
}

// NewSQLiteTable returns a table for kind. id extracts the document key.
// db must have been opened with OpenSQLite.
func NewSQLiteTable[T any](db *sql.DB, kind string, id func(T) string) *SQLiteTable[T] {
	return &SQLiteTable[T]{db: db, kind: kind, id: id}
}

// Load returns every document of the table's kind in position order.
func (s *SQLiteTable[T]) Load(ctx context.Context) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE kind = ? ORDER BY position`, s.kind)
	if err != nil {
		return nil, fmt.Errorf("persist: query %s: %w", s.kind, err)
	}
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("persist: scan %s: %w", s.kind, err)
		}

		var item T
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("persist: decode %s: %w", s.kind, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persist: rows %s: %w", s.kind, err)
	}

	return items, nil
}

// Save replaces every document of the table's kind inside one transaction.
func (s *SQLiteTable[T]) Save(ctx context.Context, items []T) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE kind = ?`, s.kind); err != nil {
		return fmt.Errorf("persist: clear %s: %w", s.kind, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (kind, id, position, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("persist: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, item := range items {
		body, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("persist: encode %s: %w", s.kind, err)
		}
		if _, err := stmt.ExecContext(ctx, s.kind, s.id(item), i, body); err != nil {
			return fmt.Errorf("persist: insert %s: %w", s.kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}

	return nil
}
