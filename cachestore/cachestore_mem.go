package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	Data *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	v, ok := s.Data.Get(cacheKey(namespace, key))
	countLookup(namespace, ok)
	return v, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, namespace, key string, val string) error {
	s.Data.Add(cacheKey(namespace, key), val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, namespace, key string) error {
	s.Data.Remove(cacheKey(namespace, key))
	return nil
}
