package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maaaruch/shoppies-bot/internal/storage"
)

// Redis is a KV backed by a Redis server. Keys never expire.
type Redis struct {
	client *redis.Client
}

// NewRedis parses url, connects and pings the server.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

func redisKey(userID int64, key string) string {
	return fmt.Sprintf("shoppies:%d:%s", userID, key)
}

func (r *Redis) GetValue(ctx context.Context, userID int64, key string) (string, error) {
	v, err := r.client.Get(ctx, redisKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *Redis) PutValue(ctx context.Context, userID int64, key, value string) error {
	return r.client.Set(ctx, redisKey(userID, key), value, 0).Err()
}

func (r *Redis) DeleteValue(ctx context.Context, userID int64, key string) (bool, error) {
	n, err := r.client.Del(ctx, redisKey(userID, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
