package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/verigrade/verigrade/pkg/cache"
	"github.com/verigrade/verigrade/pkg/logger"
	redisclient "github.com/verigrade/verigrade/pkg/redis"
	"github.com/verigrade/verigrade/pkg/tracing"
	"go.uber.org/zap"
)

// PatternCache stores built transaction patterns per user
type PatternCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*TransactionPattern, bool)
	Set(ctx context.Context, pattern *TransactionPattern)
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// MemoryPatternCache is a bounded in-process LRU whose entries expire after a TTL
type MemoryPatternCache struct {
	lru *expirable.LRU[uuid.UUID, *TransactionPattern]
}

// NewMemoryPatternCache creates an LRU holding at most size patterns for ttl each
func NewMemoryPatternCache(size int, ttl time.Duration) *MemoryPatternCache {
	return &MemoryPatternCache{
		lru: expirable.NewLRU[uuid.UUID, *TransactionPattern](size, func(_ uuid.UUID, _ *TransactionPattern) {
			patternCacheEvictions.Inc()
		}, ttl),
	}
}

func (c *MemoryPatternCache) Get(_ context.Context, userID uuid.UUID) (*TransactionPattern, bool) {
	return c.lru.Get(userID)
}

func (c *MemoryPatternCache) Set(_ context.Context, pattern *TransactionPattern) {
	c.lru.Add(pattern.UserID, pattern)
}

func (c *MemoryPatternCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.lru.Remove(userID)
	return nil
}

// Len returns the number of cached patterns
func (c *MemoryPatternCache) Len() int {
	return c.lru.Len()
}

// RedisPatternCache shares patterns between replicas through Redis.
// Redis failures degrade to a miss.
type RedisPatternCache struct {
	manager *cache.Manager
	ttl     time.Duration
}

// NewRedisPatternCache creates a Redis-backed pattern cache
func NewRedisPatternCache(manager *cache.Manager, ttl time.Duration) *RedisPatternCache {
	if ttl <= 0 {
		ttl = cache.TTL.Long()
	}
	return &RedisPatternCache{manager: manager, ttl: ttl}
}

func (c *RedisPatternCache) Get(ctx context.Context, userID uuid.UUID) (*TransactionPattern, bool) {
	key := cache.Keys.TransactionPattern(userID.String())

	var pattern TransactionPattern
	err := tracing.TraceRedisCommand(ctx, tracerName, "get", key, func(ctx context.Context) error {
		return c.manager.Get(ctx, key, &pattern)
	})
	if err != nil {
		if !redisclient.IsNil(err) {
			logger.WarnContext(ctx, "pattern cache read failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return &pattern, true
}

func (c *RedisPatternCache) Set(ctx context.Context, pattern *TransactionPattern) {
	key := cache.Keys.TransactionPattern(pattern.UserID.String())

	err := tracing.TraceRedisCommand(ctx, tracerName, "set", key, func(ctx context.Context) error {
		return c.manager.Set(ctx, key, pattern, c.ttl)
	})
	if err != nil {
		logger.WarnContext(ctx, "pattern cache write failed",
			zap.String("user_id", pattern.UserID.String()),
			zap.Error(err),
		)
	}
}

func (c *RedisPatternCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	key := cache.Keys.TransactionPattern(userID.String())
	return tracing.TraceRedisCommand(ctx, tracerName, "del", key, func(ctx context.Context) error {
		return c.manager.Delete(ctx, key)
	})
}
