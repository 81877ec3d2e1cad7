package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"request-radar/internal/models"
)

const latestStatusKey = "latest"

// RedisStatusStore stores cycle status in Redis: one key per cycle (with TTL)
// plus a "latest" pointer that always holds the most recently written status.
type RedisStatusStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore initializes a Redis-backed StatusStore.
func NewRedisStatusStore(addr, prefix string, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Close closes the Redis client.
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// SetStatus writes the cycle record and moves the latest pointer to it.
func (s *RedisStatusStore) SetStatus(ctx context.Context, status models.CycleStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+status.CycleID, payload, s.ttl)
	pipe.Set(ctx, s.prefix+latestStatusKey, payload, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// GetStatus reads one cycle record.
func (s *RedisStatusStore) GetStatus(ctx context.Context, cycleID string) (models.CycleStatus, bool, error) {
	return s.get(ctx, s.prefix+cycleID)
}

// LatestStatus reads the most recently written cycle record.
func (s *RedisStatusStore) LatestStatus(ctx context.Context) (models.CycleStatus, bool, error) {
	return s.get(ctx, s.prefix+latestStatusKey)
}

func (s *RedisStatusStore) get(ctx context.Context, key string) (models.CycleStatus, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.CycleStatus{}, false, nil
		}
		return models.CycleStatus{}, false, err
	}

	var status models.CycleStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return models.CycleStatus{}, false, err
	}
	return status, true, nil
}
