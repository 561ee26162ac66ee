package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 通知历史 / 未读计数使用的键值存储抽象
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PushList(ctx context.Context, key string, value string, maxLen int64) error
	RangeList(ctx context.Context, key string, start, stop int64) ([]string, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

var _ KV = (*RedisKV)(nil)

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// PushList 左插入并裁剪到 maxLen（通知历史滚动窗口）
func (r *RedisKV) PushList(ctx context.Context, key string, value string, maxLen int64) error {
	if err := r.c.LPush(ctx, key, value).Err(); err != nil {
		return err
	}
	if maxLen > 0 {
		return r.c.LTrim(ctx, key, 0, maxLen-1).Err()
	}
	return nil
}

func (r *RedisKV) RangeList(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := r.c.LRange(ctx, key, start, stop).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	return vals, nil
}

func (r *RedisKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := r.c.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
