package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"request-radar/internal/models"
)

// SQLiteStore keeps requests in a local SQLite file. INSERT OR IGNORE against
// the primary key gives insert-if-absent.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path (":memory:" works for tests) and migrates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS requests (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	posted_at TEXT NULL,
	posted_at_raw TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	discovered_at TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE id = ?`, id).Scan(&one)
	switch err {
	case sql.ErrNoRows:
		return false, nil
	case nil:
		return true, nil
	default:
		return false, err
	}
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, req models.Request) (bool, error) {
	var postedAt any
	if !req.PostedAt.IsZero() {
		postedAt = req.PostedAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO requests (id, title, link, author, posted_at, posted_at_raw, description, discovered_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Title, req.Link, req.Author, postedAt, req.PostedAtRaw, req.Description,
		discoveredAt(req).UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get loads a stored request.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (models.Request, bool, error) {
	var (
		req        models.Request
		postedAt   sql.NullString
		discovered string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, title, link, author, posted_at, posted_at_raw, description, discovered_at
FROM requests WHERE id = ?`, id).Scan(
		&req.ID, &req.Title, &req.Link, &req.Author, &postedAt, &req.PostedAtRaw, &req.Description, &discovered,
	)
	if err == sql.ErrNoRows {
		return models.Request{}, false, nil
	}
	if err != nil {
		return models.Request{}, false, err
	}
	if postedAt.Valid {
		req.PostedAt, _ = time.Parse(time.RFC3339Nano, postedAt.String)
	}
	req.DiscoveredAt, _ = time.Parse(time.RFC3339Nano, discovered)
	return req, true, nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
