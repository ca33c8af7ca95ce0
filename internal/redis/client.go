// Package redis wraps go-redis for the gateway's shared state: the
// sliding-window counters behind rate limiting, revoked session ids, the
// pub/sub channel webhook events are forwarded to, and the locks that keep
// scheduled jobs to one instance.
package redis

import (
	"context"
	"strconv"
	"time"

	"canvas-gateway/internal/common/errors"

	"github.com/go-redis/redis/v8"
	"github.com/lucsky/cuid"
)

// DialTimeout bounds the connectivity check in NewClient.
const DialTimeout = 5 * time.Second

// Config holds the REDIS_* settings.
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

func (c Config) options() *redis.Options {
	opts := &redis.Options{
		Addr:     c.Address,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	return opts
}

// Client is the gateway's handle on one Redis database.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings. The address is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.ConfigError("redis address is required")
	}

	rdb := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.ConnectionError("redis unreachable at "+cfg.Address, err)
	}
	return &Client{rdb: rdb}, nil
}

// Underlying returns the go-redis client, for redsync's connection pool.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// WindowHits records a hit on key and returns how many earlier hits fall in
// the trailing window. The key expires once the window has fully passed.
func (c *Client) WindowHits(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	var prior *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		prior = p.ZCard(ctx, key)
		p.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: cuid.New()})
		p.PExpire(ctx, key, 2*window)
		return nil
	})
	if err != nil {
		return 0, errors.ConnectionError("rate window update failed", err).WithContext("key", key)
	}
	return int(prior.Val()), nil
}

// Mark sets key with a ttl. A zero ttl keeps it until it is cleared.
func (c *Client) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, 1, ttl).Err()
}

// IsMarked reports whether key is set.
func (c *Client) IsMarked(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n == 1, err
}

// Clear deletes key.
func (c *Client) Clear(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Publish sends payload on channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on channels. Callers close the returned PubSub.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}
