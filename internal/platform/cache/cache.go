// Package cache wraps the shared Redis client used for short-lived counters
// and statistics. A nil *Client disables caching everywhere it is consumed.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// New creates a Redis client from a URL. Returns (nil, nil) when the URL is
// empty, meaning Redis is not configured and caching is disabled.
func New(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetInt returns a cached integer. ok is false on miss, parse failure, or
// when the client is nil.
func (c *Client) GetInt(ctx context.Context, key string) (int, bool) {
	if c == nil {
		return 0, false
	}
	n, err := c.rdb.Get(ctx, key).Int()
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetInt stores an integer with a TTL. Errors are deliberately dropped: the
// cache is advisory and the database remains the source of truth.
func (c *Client) SetInt(ctx context.Context, key string, value int, ttl time.Duration) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes keys, invalidating stale entries after a write.
func (c *Client) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	_ = c.rdb.Del(ctx, keys...).Err()
}

// Health checks the Redis connection.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
