// Package redis opens the shared go-redis connection used by the session store
// and the plaintext cache.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/config"
)

type Client struct {
	*goredis.Client
}

// New returns nil, nil when cfg has no URL: Redis is optional and callers fall
// back to in-memory backends.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{Client: goredis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// options overlays the tuning knobs from cfg on top of the URL. Zero values
// keep go-redis defaults.
func options(cfg config.Redis) (*goredis.Options, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	override(&opts.PoolSize, cfg.PoolSize)
	override(&opts.MinIdleConns, cfg.MinIdleConns)
	override(&opts.DialTimeout, cfg.DialTimeout)
	override(&opts.ReadTimeout, cfg.ReadTimeout)
	override(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func override[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// Health pings the server. A nil client reports healthy.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
