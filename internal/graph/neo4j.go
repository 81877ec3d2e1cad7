// Package graph mirrors stored requests into Neo4j as
// (Author)-[:POSTED]->(Request)<-[:DISCOVERED]-(Cycle).
package graph

import (
	"context"
	"log"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"request-radar/internal/models"
)

// SessionRunner abstracts neo4j.SessionWithContext.
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner abstracts neo4j.DriverWithContext.
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

// NewDriver connects to uri with basic auth.
func NewDriver(uri, user, password string) (DriverSessioner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}
	return &neo4jDriver{driver: driver}, nil
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return d.driver.NewSession(ctx, config)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Writer upserts request events. Writes are idempotent, so a redelivered
// event leaves the graph unchanged.
type Writer struct {
	driver DriverSessioner
}

// NewWriter wraps a driver.
func NewWriter(driver DriverSessioner) *Writer {
	return &Writer{driver: driver}
}

// WriteRequest merges the request, its author and the discovering cycle.
func (w *Writer) WriteRequest(ctx context.Context, event models.RequestEvent) error {
	query, params := BuildRequestQuery(event)
	return w.runWrite(ctx, query, params)
}

func (w *Writer) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			log.Printf("neo4j session close error: %v", err)
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

const requestQuery = "MERGE (r:Request {id: $id}) " +
	"SET r.title = coalesce($title, r.title), " +
	"r.link = coalesce($link, r.link), " +
	"r.description = coalesce($description, r.description), " +
	"r.posted_at = coalesce($posted_at, r.posted_at), " +
	"r.posted_at_raw = coalesce($posted_at_raw, r.posted_at_raw), " +
	"r.discovered_at = coalesce(r.discovered_at, $discovered_at) " +
	"WITH r " +
	"FOREACH (_ IN CASE WHEN $cycle_id IS NULL THEN [] ELSE [1] END | " +
	"MERGE (c:Cycle {id: $cycle_id}) MERGE (c)-[:DISCOVERED]->(r)) " +
	"FOREACH (_ IN CASE WHEN $author IS NULL THEN [] ELSE [1] END | " +
	"MERGE (a:Author {name: $author}) MERGE (a)-[:POSTED]->(r))"

// BuildRequestQuery returns the upsert statement and its parameters. Empty
// strings become null so they never overwrite known values.
func BuildRequestQuery(event models.RequestEvent) (string, map[string]any) {
	req := event.Request
	params := map[string]any{
		"id":            req.ID,
		"title":         nullable(req.Title),
		"link":          nullable(req.Link),
		"description":   nullable(req.Description),
		"posted_at":     nullableTime(req.PostedAt),
		"posted_at_raw": nullable(req.PostedAtRaw),
		"discovered_at": nullableTime(req.DiscoveredAt),
		"cycle_id":      nullable(event.CycleID),
		"author":        nullable(req.Author),
	}
	return requestQuery, params
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
