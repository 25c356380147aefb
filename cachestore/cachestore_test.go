package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, time.Hour)

	_, ok, err := cs.Get(ctx, "user", "german11")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(cs.Set(ctx, "user", "german11", `{"id":"german11"}`))
	val, ok, err := cs.Get(ctx, "user", "german11")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(`{"id":"german11"}`, val)

	// namespaces are distinct
	_, ok, _ = cs.Get(ctx, "other", "german11")
	assert.False(ok)

	assert.NoError(cs.Purge(ctx, "user", "german11"))
	_, ok, _ = cs.Get(ctx, "user", "german11")
	assert.False(ok)
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, 20*time.Millisecond)

	assert.NoError(cs.Set(ctx, "user", "abc", "x"))
	time.Sleep(60 * time.Millisecond)
	_, ok, err := cs.Get(ctx, "user", "abc")
	assert.NoError(err)
	assert.False(ok)
}

func TestMemcacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int32(1800), NewMemcacheStore(nil, 30*time.Minute).expiry)
	assert.Equal(int32(maxMemcacheExpiry), NewMemcacheStore(nil, 45*24*time.Hour).expiry)

	// no servers configured is an error, not a miss
	_, ok, err := NewMemcacheStore(nil, time.Minute).Get(context.Background(), "user", "abc")
	assert.Error(err)
	assert.False(ok)
}
