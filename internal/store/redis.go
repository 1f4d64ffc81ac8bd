package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const scanBatchSize = 100

// Redis is a KV implementation backed by a Redis server.
type Redis struct {
	client *redis.Client
}

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis constructs a Redis-backed KV store.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, eris.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &Redis{client: client}, nil
}

var _ KV = (*Redis)(nil)

// Get returns the value stored under key.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, eris.Wrapf(ErrNotFound, "key: %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "getting key: %s", key)
	}
	return value, nil
}

// Set stores value under key with no expiry.
func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return eris.Wrapf(err, "setting key: %s", key)
	}
	return nil
}

// Delete removes key.
func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return eris.Wrapf(err, "deleting key: %s", key)
	}
	return nil
}

// ScanKeys returns one SCAN page of keys matching the glob pattern.
func (s *Redis) ScanKeys(ctx context.Context, match string, cursor uint64) ([]string, uint64, error) {
	keys, next, err := s.client.Scan(ctx, cursor, match, scanBatchSize).Result()
	if err != nil {
		return nil, 0, eris.Wrapf(err, "scanning keys: %s", match)
	}
	return keys, next, nil
}

// Close releases the underlying Redis connection.
func (s *Redis) Close() error {
	if err := s.client.Close(); err != nil {
		return eris.Wrap(err, "closing redis client")
	}
	return nil
}
