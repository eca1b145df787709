package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, shared across Seraph processes.
// Construction follows go-redis/v9's documented client idiom (kubernaut
// declares the dependency for the same purpose — a shared dedup/cache
// layer — though its own Redis wiring sits behind a thin config type we
// don't have retrieved source for, so RedisStore talks to go-redis
// directly rather than through an intermediary).
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures a RedisStore connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a RedisStore. It does not ping eagerly: per
// spec.md §4.2, an unreachable backing store degrades Get/Set to no-ops
// rather than failing construction or the calling operation.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore{client: client}
}

// NewRedisStoreFromClient wraps an already-constructed client, used by
// tests against miniredis.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		// Cache misses must never fail the calling operation (spec.md §4.2).
		return "", false, nil
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		// Best-effort write: swallow the error rather than propagate it.
		return nil
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) int {
	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *RedisStore) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
