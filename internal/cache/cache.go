package cache

import (
	"context"
	"time"

	"priceguard/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"endpoint", "instance"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"endpoint", "instance"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// Client wraps Redis for response caching and alert pub/sub. Redis()
// exposes the underlying client for the rate limiter.
type Client struct {
	rdb *redis.Client
}

func New(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get returns the cached payload for key, or "" on a miss.
func (c *Client) Get(ctx context.Context, key, endpoint, instance string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		cacheMissesTotal.WithLabelValues(endpoint, instance).Inc()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	cacheHitsTotal.WithLabelValues(endpoint, instance).Inc()
	return val, nil
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// InvalidateByPrefix deletes every key under the prefix. Failures are
// logged, not surfaced: a lingering cached response expires by TTL anyway.
func (c *Client) InvalidateByPrefix(ctx context.Context, prefix string) {
	var cursor uint64
	invalidated := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			logger.Log.Error("Cache scan for invalidation failed",
				zap.String("prefix", prefix),
				zap.Error(err),
			)
			return
		}
		for _, key := range keys {
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				logger.Log.Warn("Failed to invalidate cache key",
					zap.String("key", key),
					zap.Error(err),
				)
				continue
			}
			invalidated++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	logger.Log.Debug("Cache invalidation completed",
		zap.String("prefix", prefix),
		zap.Int("invalidated_keys", invalidated),
	)
}
