package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"request-radar/internal/models"
)

// pgConn is the slice of *pgx.Conn the store needs.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (commandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// commandTag narrows pgconn.CommandTag to what inserts look at.
type commandTag interface {
	RowsAffected() int64
}

type pgxConnAdapter struct {
	conn *pgx.Conn
}

func (a pgxConnAdapter) Exec(ctx context.Context, sql string, args ...any) (commandTag, error) {
	return a.conn.Exec(ctx, sql, args...)
}

func (a pgxConnAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.conn.QueryRow(ctx, sql, args...)
}

func (a pgxConnAdapter) Close(ctx context.Context) error {
	return a.conn.Close(ctx)
}

// PostgresStore keeps requests in a single table; the primary key on id plus
// ON CONFLICT DO NOTHING gives insert-if-absent.
type PostgresStore struct {
	conn  pgConn
	table string
}

// OpenPostgres connects and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn, schema string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	s := &PostgresStore{conn: pgxConnAdapter{conn: conn}, table: requestsTable(schema)}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func requestsTable(schema string) string {
	if schema == "" {
		return pgx.Identifier{"requests"}.Sanitize()
	}
	return pgx.Identifier{schema, "requests"}.Sanitize()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
	id            BIGINT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	link          TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	posted_at     TIMESTAMPTZ NULL,
	posted_at_raw TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL,
	discovered_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+s.table+` WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, req models.Request) (bool, error) {
	tag, err := s.conn.Exec(ctx, `INSERT INTO `+s.table+`
	(id, title, link, author, posted_at, posted_at_raw, description, discovered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
		req.ID, req.Title, req.Link, req.Author, nullTime(req.PostedAt), req.PostedAtRaw, req.Description, discoveredAt(req),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// nullTime maps the "unknown" zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func discoveredAt(req models.Request) time.Time {
	if req.DiscoveredAt.IsZero() {
		return time.Now().UTC()
	}
	return req.DiscoveredAt
}
