package cache

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"plantcare/internal/config"
	"plantcare/pkg/logger"
)

const careTasksPrefix = "care:tasks:"

var (
	client *redis.Client
	once   sync.Once
)

// Client returns the global Redis client (initialized on first use). nil if Redis is unreachable.
func Client(ctx context.Context) *redis.Client {
	once.Do(func() {
		cfg := config.Get()
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error(ctx, "Invalid REDIS_URL", "error", err, "url", cfg.RedisURL)
			return
		}
		opts.PoolSize = cfg.RedisPoolSize
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Error(ctx, "Redis ping failed", "error", err)
			_ = c.Close()
			return
		}
		client = c
		logger.Info(ctx, "Redis client initialized", "pool_size", cfg.RedisPoolSize)
	})
	return client
}

// CareTasksKey is the cache key for a user's calendar, optionally narrowed to one listing.
// Ids are query-escaped so ":" and glob characters cannot cross into another user's keys.
func CareTasksKey(userID, listingID string) string {
	if listingID == "" {
		return careTasksPrefix + url.QueryEscape(userID)
	}
	return careTasksPrefix + url.QueryEscape(userID) + ":" + url.QueryEscape(listingID)
}

// careTasksPattern matches every per-listing key of one user.
func careTasksPattern(userID string) string {
	return careTasksPrefix + url.QueryEscape(userID) + ":*"
}

// TaskCache caches serialized care-task lists per user. Redis errors are treated as misses.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a cache over rdb. A nil client gives a cache that always misses.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// Get returns the raw JSON for a user's task list. Returns (nil, false) on miss or error.
func (c *TaskCache) Get(ctx context.Context, userID, listingID string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	b, err := c.rdb.Get(ctx, CareTasksKey(userID, listingID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get care tasks failed", "error", err)
		return nil, false
	}
	return b, true
}

// Set stores the raw JSON for a user's task list with the configured TTL.
func (c *TaskCache) Set(ctx context.Context, userID, listingID string, b []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, CareTasksKey(userID, listingID), b, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set care tasks failed", "error", err)
	}
}

// InvalidateUserTasks deletes the user's list and every per-listing list so the next read goes to DB.
func (c *TaskCache) InvalidateUserTasks(ctx context.Context, userID string) {
	if c == nil || c.rdb == nil {
		return
	}
	keys := []string{CareTasksKey(userID, "")}
	iter := c.rdb.Scan(ctx, 0, careTasksPattern(userID), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Debug(ctx, "Redis scan care tasks failed", "error", err)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Debug(ctx, "Redis invalidate care tasks failed", "error", err, "user_id", userID)
	}
}
