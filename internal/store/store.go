// Package store persists scraped requests. Every backend gives insert-if-absent
// semantics keyed by request id; that uniqueness is what keeps overlapping
// cycles from storing or announcing a request twice.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"request-radar/internal/models"
)

// ErrUnknownDriver is returned by NewOpener for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Supported driver names.
const (
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// RequestStore is the durable record of requests already seen.
type RequestStore interface {
	// Exists is a point lookup by id.
	Exists(ctx context.Context, id int64) (bool, error)
	// InsertIfAbsent stores req and returns true, or returns false (and no
	// error) when a request with the same id is already stored.
	InsertIfAbsent(ctx context.Context, req models.Request) (bool, error)
	Close(ctx context.Context) error
}

// Opener acquires a fresh store connection for one cycle.
type Opener func(ctx context.Context) (RequestStore, error)

// Config selects and configures a backend.
type Config struct {
	Driver string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	RedisAddr   string
	RedisPrefix string

	PostgresDSN    string
	PostgresSchema string

	SQLitePath string
}

// NewOpener returns the Opener for cfg.Driver.
func NewOpener(cfg Config) (Opener, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverMongo, "":
		return func(ctx context.Context) (RequestStore, error) {
			return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		}, nil
	case DriverRedis:
		return func(ctx context.Context) (RequestStore, error) {
			return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		}, nil
	case DriverPostgres:
		return func(ctx context.Context) (RequestStore, error) {
			return OpenPostgres(ctx, cfg.PostgresDSN, cfg.PostgresSchema)
		}, nil
	case DriverSQLite:
		return func(ctx context.Context) (RequestStore, error) {
			return OpenSQLite(ctx, cfg.SQLitePath)
		}, nil
	case DriverMemory:
		return NewMemoryStore().Opener(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
