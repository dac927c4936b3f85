package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores the value under one key with an expiry. GETDEL makes
// Take atomic across processes.
type RedisSlot struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisSlot(client redis.Cmdable, key string, ttl time.Duration) *RedisSlot {
	if key == "" {
		key = DefaultKey
	}
	return &RedisSlot{client: client, key: key, ttl: ttl}
}

func (s *RedisSlot) Put(ctx context.Context, text string) error {
	if err := s.client.Set(ctx, s.key, text, s.ttl).Err(); err != nil {
		return fmt.Errorf("store handoff in redis: %w", err)
	}
	return nil
}

func (s *RedisSlot) Take(ctx context.Context) (string, error) {
	text, err := s.client.GetDel(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("read handoff from redis: %w", err)
	}
	return text, nil
}

// Ping checks connectivity for diagnostics.
func (s *RedisSlot) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
