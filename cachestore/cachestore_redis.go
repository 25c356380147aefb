package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(1_000, ttl),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var val string
	err := s.Data.Get(ctx, cacheKey(namespace, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		countLookup(namespace, false)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	countLookup(namespace, true)
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, namespace, key string, val string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   cacheKey(namespace, key),
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, namespace, key string) error {
	err := s.Data.Delete(ctx, cacheKey(namespace, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
