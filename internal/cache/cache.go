// Package cache provides a Redis-backed cache for answered questions.
// Cache failures degrade to a passthrough; the workflow never depends
// on Redis being up.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finvect/finrag/types"
)

const keyPrefix = "finrag:answer:"

// AnswerCache stores AnswerResults in Redis keyed by a hash of the
// question and its retrieval parameters.
type AnswerCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates an AnswerCache over an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *AnswerCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "answer_cache")),
	}
}

// Get returns the cached result for key, or false on a miss or any
// Redis failure.
func (c *AnswerCache) Get(ctx context.Context, key string) (types.AnswerResult, bool) {
	data, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.Error(err))
		}
		return types.AnswerResult{}, false
	}

	var result types.AnswerResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", zap.Error(err))
		c.Invalidate(ctx, key)
		return types.AnswerResult{}, false
	}
	return result, true
}

// Set stores result under key for the configured TTL. Failures are
// logged and swallowed.
func (c *AnswerCache) Set(ctx context.Context, key string, result types.AnswerResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
	}
}

// Invalidate drops one cached entry.
func (c *AnswerCache) Invalidate(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.Error(err))
	}
}

// redisKey hashes the logical key so question text never appears in
// Redis key space.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:16])
}
