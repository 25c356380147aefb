package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached treats expirations over 30 days as absolute timestamps
const maxMemcacheExpiry = 30*24*60*60 - 60

type MemcacheStore struct {
	Client *memcache.Client
	expiry int32
}

var _ CacheStore = (*MemcacheStore)(nil)

func NewMemcacheStore(servers []string, ttl time.Duration) *MemcacheStore {
	expiry := int32(maxMemcacheExpiry)
	if ttl.Seconds() < maxMemcacheExpiry {
		expiry = int32(ttl.Seconds())
	}
	return &MemcacheStore{
		Client: memcache.New(servers...),
		expiry: expiry,
	}
}

func (s *MemcacheStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	item, err := s.Client.Get(cacheKey(namespace, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		countLookup(namespace, false)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	countLookup(namespace, true)
	return string(item.Value), true, nil
}

func (s *MemcacheStore) Set(ctx context.Context, namespace, key string, val string) error {
	return s.Client.Set(&memcache.Item{
		Key:        cacheKey(namespace, key),
		Value:      []byte(val),
		Expiration: s.expiry,
	})
}

func (s *MemcacheStore) Purge(ctx context.Context, namespace, key string) error {
	err := s.Client.Delete(cacheKey(namespace, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
