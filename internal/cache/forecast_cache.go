package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/seidrlabs/demandcast/internal/models"
)

// ForecastCacheEntry wraps a cached forecast with cache metadata.
type ForecastCacheEntry struct {
	Result    *models.ForecastResult `json:"result"`
	CachedAt  time.Time              `json:"cached_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// ForecastCacheStats tracks cache performance metrics.
type ForecastCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisForecastCache caches forecast results in Redis keyed by run and
// model name, so repeated requests for the same forecast skip recomputation.
type RedisForecastCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *ForecastCacheStats
	prefix string
	logger *logrus.Logger
}

// NewRedisForecastCache creates a new Redis-backed forecast cache.
func NewRedisForecastCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisForecastCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisForecastCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &ForecastCacheStats{},
		prefix: "forecast_cache:",
		logger: logger,
	}
}

func (c *RedisForecastCache) key(runID, modelName string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, runID, modelName)
}

// Get retrieves a cached forecast result, returning false on any miss or
// deserialization problem.
func (c *RedisForecastCache) Get(ctx context.Context, runID, modelName string) (*models.ForecastResult, bool) {
	cacheKey := c.key(runID, modelName)

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", cacheKey).Warn("Redis error getting forecast")
		c.miss()
		return nil, false
	}

	var entry ForecastCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("key", cacheKey).Warn("Error deserializing cached forecast")
		c.miss()
		return nil, false
	}
	if entry.Result == nil {
		c.miss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()

	return entry.Result, true
}

// Set stores a forecast result in Redis with the configured TTL. Failures
// are logged and swallowed; caching is best-effort.
func (c *RedisForecastCache) Set(ctx context.Context, runID string, result *models.ForecastResult) {
	if result == nil {
		return
	}
	cacheKey := c.key(runID, result.ModelName)

	now := time.Now()
	entry := ForecastCacheEntry{
		Result:    result,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("key", cacheKey).Warn("Error serializing forecast")
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", cacheKey).Warn("Redis error setting forecast")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// Invalidate removes all cached forecasts for a run.
func (c *RedisForecastCache) Invalidate(ctx context.Context, runID string) error {
	pattern := c.prefix + runID + ":*"

	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan forecast cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete forecast cache keys: %w", err)
	}
	return nil
}

// GetStats returns a snapshot of the cache counters.
func (c *RedisForecastCache) GetStats() ForecastCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return ForecastCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

func (c *RedisForecastCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
