package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Prefix        string
	TTL           time.Duration
	MaxValueBytes int
}

type RedisStore struct {
	client   *redis.Client
	prefix   string
	baseTTL  time.Duration
	maxBytes int
}

func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{
		client:   client,
		prefix:   opts.Prefix,
		baseTTL:  ttl,
		maxBytes: opts.MaxValueBytes,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if r.maxBytes > 0 && len(value) > r.maxBytes {
		return fmt.Errorf("%w: value of %d bytes exceeds %d", ErrQuotaExceeded, len(value), r.maxBytes)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		if isRedisOOM(err) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) redisKey(key string) string {
	return r.prefix + key
}

// Redis rejects writes with an OOM error once maxmemory is hit under a noeviction policy.
func isRedisOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM ")
}
