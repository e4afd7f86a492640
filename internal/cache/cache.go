package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Query groups invalidated after writes.
const (
	GroupIuran          = "iuran"
	GroupDashboardStats = "dashboard-stats"
	GroupUserSubmission = "user-submission"
)

// Store is the cache surface used by services.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	InvalidateGroups(ctx context.Context, groups ...string) error
}

// Client wraps redis.Client but fails safe by swallowing connectivity errors.
type Client struct {
	client *redis.Client
}

// Ensure Client implements Store
var _ Store = (*Client)(nil)

// New creates a new Redis client.
func New(addr, password string, db int) *Client {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return &Client{client: redis.NewClient(opts)}
}

// Key joins a group and its parts into a cache key, e.g. "user-submission:<id>:2024-06-01".
func Key(group string, parts ...string) string {
	key := group
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// fail safe: behave like cache miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		// fail safe: ignore redis errors
		return nil
	}
	return nil
}

// Delete removes keys, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return nil
	}
	return nil
}

// InvalidateGroups removes every key of the given groups: the bare group key and
// all keys prefixed with "<group>:".
func (c *Client) InvalidateGroups(ctx context.Context, groups ...string) error {
	if c == nil || c.client == nil {
		return nil
	}
	for _, group := range groups {
		keys := []string{group}
		iter := c.client.Scan(ctx, 0, group+":*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			// fail safe: a stale entry expires with its TTL
			continue
		}
		_ = c.Delete(ctx, keys...)
	}
	return nil
}

// Ping reports whether redis answers.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
