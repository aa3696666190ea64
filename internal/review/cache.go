package review

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key for the inbox snapshot
	inboxCacheKey = "parapet:review:inbox"

	// DefaultCacheTTL bounds snapshot staleness. The inbox contract is
	// already eventually consistent across pages, so a snapshot a few
	// seconds old changes nothing for callers.
	DefaultCacheTTL = 15 * time.Second
)

// Cache holds a short-lived snapshot of the assembled inbox in Redis so
// polling reviewers do not rebuild the full page sweep on every request.
// Every failure degrades to a miss; the cache never fails a build.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type CacheOption func(*Cache)

func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache constructs a snapshot cache over the given client. A nil client
// returns a nil cache, which the aggregator treats as caching disabled.
func NewCache(client *redis.Client, opts ...CacheOption) *Cache {
	if client == nil {
		return nil
	}
	c := &Cache{client: client, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot, reporting whether one was found. A decode
// failure or Redis error reads as a miss.
func (c *Cache) Get(ctx context.Context) (*Inbox, bool) {
	payload, err := c.client.Get(ctx, inboxCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.WarnContext(ctx, "review inbox cache read failed", "error", err)
		}
		return nil, false
	}

	var inbox Inbox
	if err := json.Unmarshal(payload, &inbox); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "review inbox cache entry corrupt", "error", err)
		}
		return nil, false
	}
	return &inbox, true
}

// Set stores the snapshot with the configured TTL, best-effort.
func (c *Cache) Set(ctx context.Context, inbox *Inbox) {
	payload, err := json.Marshal(inbox)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, inboxCacheKey, payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "review inbox cache write failed", "error", err)
	}
}
