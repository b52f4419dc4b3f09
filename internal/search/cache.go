// Package search exposes the ranking engine over HTTP, with an optional
// Redis-backed result cache collapsed through singleflight.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dangtom700/lexindex/internal/rank"
	"github.com/dangtom700/lexindex/internal/vector"
	"github.com/dangtom700/lexindex/pkg/config"
	pkgredis "github.com/dangtom700/lexindex/pkg/redis"
)

const keyPrefix = "lexindex:query:"

// QueryCache caches ranked results in Redis. Keys are derived from the
// query's token counts, so reordering the words of a query hits the same
// entry.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewQueryCache creates a QueryCache over a connected Redis client.
func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for the query, if present.
func (c *QueryCache) Get(ctx context.Context, counts vector.TokenCount, topN int) (*rank.Result, bool) {
	key := c.buildKey(counts, topN)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result rank.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

// Set stores a result under the query's key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, counts vector.TokenCount, topN int, result *rank.Result) {
	key := c.buildKey(counts, topN)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and caches it, with
// duplicate concurrent computations for the same key collapsed into one.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	counts vector.TokenCount,
	topN int,
	computeFn func() (*rank.Result, error),
) (*rank.Result, bool, error) {
	if result, ok := c.Get(ctx, counts, topN); ok {
		return result, true, nil
	}
	key := c.buildKey(counts, topN)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, counts, topN); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, counts, topN, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*rank.Result), false, nil
}

// Invalidate removes every cached query result; called after a reindex.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the running hit/miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(counts vector.TokenCount, topN int) string {
	hash := sha256.Sum256([]byte(CanonicalQuery(counts, topN)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// CanonicalQuery renders token counts in sorted order so equivalent queries
// share one cache key.
func CanonicalQuery(counts vector.TokenCount, topN int) string {
	parts := make([]string, 0, len(counts))
	for token, count := range counts {
		parts = append(parts, fmt.Sprintf("%s:%d", token, count))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s|top=%d", strings.Join(parts, ","), topN)
}
