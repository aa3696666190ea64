// Package redis dials the optional cache backing the review inbox.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"parapet/internal/platform/config"
)

// Client embeds the go-redis client so callers use it directly.
type Client struct {
	*redis.Client
}

// New connects using the configured URL. An empty URL returns (nil, nil),
// which callers read as "run without the cache". Pool sizing and timeouts
// from config override whatever the URL carries.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return &Client{Client: client}, nil
}
