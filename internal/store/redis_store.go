package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"request-radar/internal/models"
)

// redisCommander is the slice of *redis.Client the store needs.
type redisCommander interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisStore keeps each request as a JSON string under prefix+id.
// Keys never expire: stored requests are permanent.
type RedisStore struct {
	client redisCommander
	prefix string
}

// OpenRedis connects and pings.
func OpenRedis(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return newRedisStore(client, prefix), nil
}

func newRedisStore(client redisCommander, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id int64) string {
	return s.prefix + strconv.FormatInt(id, 10)
}

func (s *RedisStore) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, req models.Request) (bool, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, s.key(req.ID), payload, 0).Result()
}

func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}
