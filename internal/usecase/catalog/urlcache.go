package catalog

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	urlCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_signed_url_cache_hits_total",
		Help: "Signed URL lookups served from cache.",
	})
	urlCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_signed_url_cache_misses_total",
		Help: "Signed URL lookups that had to presign.",
	})
)

// urlCache keeps signed URLs per object key. Entries live for half of the
// URL lifetime, so a cached URL is always valid for at least ttl/2.
type urlCache struct {
	lru *expirable.LRU[string, string]
}

func newURLCache(size int, urlTTL time.Duration) *urlCache {
	return &urlCache{lru: expirable.NewLRU[string, string](size, nil, urlTTL/2)}
}

func (c *urlCache) get(key string) (string, bool) {
	url, ok := c.lru.Get(key)
	if ok {
		urlCacheHitsTotal.Inc()
		return url, true
	}
	urlCacheMissesTotal.Inc()

	return "", false
}

func (c *urlCache) set(key, url string) {
	c.lru.Add(key, url)
}

func (c *urlCache) forget(key string) {
	c.lru.Remove(key)
}
