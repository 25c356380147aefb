// Cache for upstream account lookups (stored as raw JSON strings) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis, memcached and in-process memory. The redis
// and memcached implementations let several watcher processes share one cache of upstream account metadata.
package cachestore
