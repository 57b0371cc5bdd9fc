package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisinfra "github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
)

// ResultCache fronts Engine.Search with a Redis-backed cache keyed on the
// query's content and search parameters, so that repeated searches for the
// same bit string and options under an unchanged population skip the grid
// walk entirely. It is optional — a nil *ResultCache (or one built around a
// disabled configuration) is never consulted.
type ResultCache struct {
	client   *redisinfra.Client
	log      logging.Logger
	ttl      time.Duration
	keyspace string
}

// NewResultCache wires a ResultCache around an already-constructed Redis
// client. ttl <= 0 disables expiration (entries live until evicted or
// explicitly invalidated).
func NewResultCache(client *redisinfra.Client, ttl time.Duration, log logging.Logger) *ResultCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ResultCache{client: client, log: log, ttl: ttl, keyspace: "fingerprint:search:"}
}

// cacheKey derives a stable cache key from the query bit string and the
// parameters that affect its result set; sort order and limit both change
// what's returned, so both are part of the key.
func cacheKey(keyspace, bitString string, opts SearchOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.6f|%t|%d", bitString, opts.Threshold, opts.Sorted, opts.Limit)
	return keyspace + hex.EncodeToString(h.Sum(nil))
}

// Get returns a previously cached result set for the given bit string and
// options, or (nil, false) on a cache miss. A cache error is logged and
// treated as a miss — the cache is a performance optimization, never a
// correctness dependency.
func (c *ResultCache) Get(ctx context.Context, bitString string, opts SearchOptions) ([]SearchResult, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	key := cacheKey(c.keyspace, bitString, opts)
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("fingerprint result cache get failed", logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}
	var results []SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		c.log.Warn("fingerprint result cache entry corrupt", logging.String("key", key), logging.Err(err))
		return nil, false
	}
	return results, true
}

// Put stores a result set for the given bit string and options. Failures are
// logged, not returned, for the same reason Get treats misses as non-fatal.
func (c *ResultCache) Put(ctx context.Context, bitString string, opts SearchOptions, results []SearchResult) {
	if c == nil || c.client == nil {
		return
	}
	key := cacheKey(c.keyspace, bitString, opts)
	raw, err := json.Marshal(results)
	if err != nil {
		c.log.Warn("fingerprint result cache encode failed", logging.Err(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("fingerprint result cache put failed", logging.String("key", key), logging.Err(err))
	}
}

// CachedSearch runs Search through a ResultCache, falling back to the
// Engine directly when cache is nil. A cache hit never touches the grid.
func CachedSearch(ctx context.Context, e *Engine, cache *ResultCache, queryID, bitString string, opts SearchOptions) ([]SearchResult, error) {
	if cache != nil {
		if cached, ok := cache.Get(ctx, bitString, opts); ok {
			return cached, nil
		}
	}
	results, err := e.Search(ctx, queryID, bitString, opts)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(ctx, bitString, opts, results)
	}
	return results, nil
}
