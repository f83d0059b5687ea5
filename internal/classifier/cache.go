package classifier

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	cacheSize = 4096
	cacheTTL  = time.Hour
)

// Cache memoizes classifications. User-agent strings repeat heavily across
// visits, so the hot ingestion path hits the LRU far more often than the
// rule tables. Classification is pure, so cached entries never go stale in
// a correctness sense; the TTL only bounds memory for one-off UAs.
type Cache struct {
	lru *expirable.LRU[cacheKey, Classification]
}

type cacheKey struct {
	ua       string
	referrer string
}

func NewCache() *Cache {
	return &Cache{
		lru: expirable.NewLRU[cacheKey, Classification](cacheSize, nil, cacheTTL),
	}
}

// Classify returns the memoized classification for (userAgent, referrerURL),
// computing and caching it on a miss.
func (c *Cache) Classify(userAgent, referrerURL string) Classification {
	key := cacheKey{ua: userAgent, referrer: referrerURL}
	if v, ok := c.lru.Get(key); ok {
		return v
	}
	v := Classify(userAgent, referrerURL)
	c.lru.Add(key, v)
	return v
}
