package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisKV keeps drafts in Redis so they survive API restarts and are shared
// between replicas.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("draft: redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("draft: redis set %s: %w", key, err)
	}
	return nil
}

// SetAll writes every pair with a single MSET, which Redis applies atomically.
func (r *RedisKV) SetAll(ctx context.Context, pairs ...Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(pairs)*2)
	for _, p := range pairs {
		values = append(values, p.Key, p.Value)
	}
	if err := r.client.MSet(ctx, values...).Err(); err != nil {
		return fmt.Errorf("draft: redis mset: %w", err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("draft: redis del: %w", err)
	}
	return nil
}
