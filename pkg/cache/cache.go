package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/verigrade/verigrade/pkg/redis"
)

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis redisclient.Store
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.Store) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result.
// A miss surfaces as the underlying redis.Nil error; use redisclient.IsNil to test for it.
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("failed to unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// TransactionPattern returns the cache key for a user's spending baseline
func (k CacheKeys) TransactionPattern(userID string) string {
	return fmt.Sprintf("fraud:pattern:%s", userID)
}

// CacheTTL defines common cache TTL durations
type CacheTTL struct{}

var TTL = CacheTTL{}

func (t CacheTTL) Short() time.Duration  { return 5 * time.Minute }
func (t CacheTTL) Medium() time.Duration { return 15 * time.Minute }
func (t CacheTTL) Long() time.Duration   { return 1 * time.Hour }
