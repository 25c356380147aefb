package cachestore

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheStore holds string values under a (namespace, key) pair. A miss is
// reported as ok=false with a nil error.
type CacheStore interface {
	Get(ctx context.Context, namespace, key string) (val string, ok bool, err error)
	Set(ctx context.Context, namespace, key string, val string) error
	Purge(ctx context.Context, namespace, key string) error
}

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arenawatch_cache_lookups",
	Help: "Number of cache lookups, by namespace and outcome",
}, []string{"namespace", "outcome"})

func countLookup(namespace string, hit bool) {
	if hit {
		cacheLookups.WithLabelValues(namespace, "hit").Inc()
	} else {
		cacheLookups.WithLabelValues(namespace, "miss").Inc()
	}
}

func cacheKey(namespace, key string) string {
	return "arenawatch/" + namespace + "/" + key
}
