package redis_repository

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "ragrouter:"

// redisCache implements repository.Cache on a shared Redis instance.
// Concurrent writers of one key resolve last-writer-wins.
type redisCache struct {
	client *redis.Client
}

func (r redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrCacheMiss
		}
		return nil, err
	}
	return val, nil
}

func (r redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, cacheKeyPrefix+key, val, ttl).Err()
}

func (r redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r redisCache) Close() error {
	return r.client.Close()
}

func NewRedisCache(client *redis.Client) *redisCache {
	return &redisCache{
		client: client,
	}
}
