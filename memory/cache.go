package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore wraps a Store with a Redis-backed cache in front of
// GetRelevant: repeat queries within a session (the injector calls it once
// per orchestrator run) hit Redis instead of re-scoring every shard entry.
// Writes invalidate nothing proactively — entries are cached with a short
// TTL instead, trading a little staleness for not having to track which
// cache keys a given Add/Update/Delete could affect.
type CachedStore struct {
	*Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps store with a cache backed by rdb. A nil rdb disables
// caching entirely and every call falls through to the underlying Store.
func NewCachedStore(store *Store, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{Store: store, rdb: rdb, ttl: ttl, logger: logger}
}

func relevantCacheKey(agent, query string, tags []string, limit int) string {
	sorted := append([]string(nil), tags...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	raw := fmt.Sprintf("%s\x1f%s\x1f%s\x1f%d", agent, query, strings.Join(sorted, ","), limit)
	sum := sha256.Sum256([]byte(raw))
	return "raeburn:relevant:" + hex.EncodeToString(sum[:16])
}

// GetRelevant serves from Redis when possible, falling back to the
// underlying Store's hybrid BM25/recency/importance ranking on a miss or
// when Redis is unreachable.
func (c *CachedStore) GetRelevant(agent, query string, tags []string, limit int) ([]Entry, error) {
	if c.rdb == nil {
		return c.Store.GetRelevant(agent, query, tags, limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	key := relevantCacheKey(agent, query, tags, limit)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err == nil {
			return entries, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("relevant cache get failed", zap.Error(err))
	}

	entries, err := c.Store.GetRelevant(agent, query, tags, limit)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(entries); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("relevant cache set failed", zap.Error(err))
		}
	}
	return entries, nil
}
