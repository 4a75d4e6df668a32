// Package cache implements the tiered cache layer: namespaced keys over a
// key/value backend with retry, gzip compression for large payloads,
// sliding TTL extension, batch operations, and operational metrics.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by backends when a key does not exist.
var ErrCacheMiss = errors.New("cache: miss")

// ErrUnavailable wraps backend failures that survived all retries.
// Callers treat the cache as a pure optimization and fall through to
// recomputation on this error.
var ErrUnavailable = errors.New("cache: backend unavailable")

// BatchWrite is one entry of a pipelined batch set. Stale names the
// sibling key variant removed alongside the write so the plain and
// compressed forms of a key never coexist.
type BatchWrite struct {
	Key   string
	Value []byte
	Stale string
}

// Backend is the key/value store beneath the cache layer. Values are
// opaque byte strings. A zero ttl means no expiration.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	MSet(ctx context.Context, writes []BatchWrite, ttl time.Duration) error
	Close() error
}

// RedisBackend adapts a go-redis client to the Backend interface.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client, used by tests.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.client.Expire(ctx, key, ttl).Err()
}

func (b *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	return b.client.Keys(ctx, pattern).Result()
}

// MGet returns one slot per key; missing keys yield nil slots, not errors.
func (b *RedisBackend) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		switch s := v.(type) {
		case string:
			out[i] = []byte(s)
		case []byte:
			out[i] = s
		}
	}
	return out, nil
}

// MSet issues every write and stale-key delete in one pipeline.
func (b *RedisBackend) MSet(ctx context.Context, writes []BatchWrite, ttl time.Duration) error {
	if len(writes) == 0 {
		return nil
	}
	pipe := b.client.Pipeline()
	for _, w := range writes {
		pipe.Set(ctx, w.Key, w.Value, ttl)
		if w.Stale != "" {
			pipe.Del(ctx, w.Stale)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
