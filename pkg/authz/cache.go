package authz

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dirgate/dirgate/pkg/observability"
)

// cacheEntry pairs a derived value with the wall-clock instant it was
// computed at. Staleness is decided at read time, never by a timer.
type cacheEntry[V any] struct {
	value     V
	timestamp time.Time
}

// ttlCache is a per-principal derived-value cache. The LRU bound keeps
// an abusive principal stream from growing memory without limit; the
// TTL decides freshness. golang-lru is internally synchronized, so the
// cache is safe under concurrent request handling.
type ttlCache[V any] struct {
	name    string
	entries *lru.Cache[string, cacheEntry[V]]
	ttl     time.Duration
	now     func() time.Time
}

const defaultCacheSize = 4096

func newTTLCache[V any](name string, ttl time.Duration, size int) *ttlCache[V] {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, _ := lru.New[string, cacheEntry[V]](size)
	return &ttlCache[V]{
		name:    name,
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}
}

// get returns the cached value when present and strictly younger than
// the TTL. An entry whose age equals or exceeds the TTL is not
// authoritative and reports a miss.
func (c *ttlCache[V]) get(key string) (V, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		observability.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		observability.CacheLookups.WithLabelValues(c.name, "stale").Inc()
		var zero V
		return zero, false
	}
	observability.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	return entry.value, true
}

// put stores a freshly computed value.
func (c *ttlCache[V]) put(key string, value V) {
	c.entries.Add(key, cacheEntry[V]{value: value, timestamp: c.now()})
}
