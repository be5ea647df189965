package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spiffcs/langstats/internal/constants"
)

// RedisSnapshotter stores the snapshot as a JSON value under a single key.
type RedisSnapshotter struct {
	client *redis.Client
	key    string
}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisSnapshotter creates a snapshotter on client. An empty key selects
// the default key.
func NewRedisSnapshotter(client *redis.Client, key string) *RedisSnapshotter {
	if key == "" {
		key = constants.SnapshotRedisKey
	}
	return &RedisSnapshotter{client: client, key: key}
}

// Location returns the Redis address and key.
func (r *RedisSnapshotter) Location() string {
	return fmt.Sprintf("redis://%s/%s", r.client.Options().Addr, r.key)
}

// Load reads the snapshot value.
func (r *RedisSnapshotter) Load(ctx context.Context) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get failed: %w", err)
	}
	return decodeSnapshot(data)
}

// Save writes the snapshot value without expiry; staleness is judged from
// the snapshot's own timestamp.
func (r *RedisSnapshotter) Save(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Clear deletes the snapshot key.
func (r *RedisSnapshotter) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisSnapshotter) Close() error {
	return r.client.Close()
}
