package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chopmart/chopmart-backend/pkg/logger"
)

const defaultCacheTTL = 10 * time.Minute

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedSource serves the fee table from a Redis JSON snapshot and falls back
// to the backing source on a miss. Refresh always re-reads the backing source.
type CachedSource struct {
	backing Source
	cache   cacheStore
	key     string
	ttl     time.Duration
	logg    *logger.Logger
}

// NewCachedSource wraps backing with a Redis snapshot stored under key.
func NewCachedSource(backing Source, cache cacheStore, key string, ttl time.Duration, logg *logger.Logger) (*CachedSource, error) {
	if backing == nil {
		return nil, fmt.Errorf("backing fee source required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if key == "" {
		return nil, fmt.Errorf("cache key required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{backing: backing, cache: cache, key: key, ttl: ttl, logg: logg}, nil
}

func (c *CachedSource) Current(ctx context.Context) (FeeTable, error) {
	raw, err := c.cache.Get(ctx, c.key)
	switch {
	case err == nil:
		var table FeeTable
		jsonErr := json.Unmarshal([]byte(raw), &table)
		if jsonErr == nil {
			return table, nil
		}
		c.warn(ctx, "fee table cache snapshot unreadable", jsonErr)
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "fee table cache read failed", err)
	}
	return c.Refresh(ctx)
}

func (c *CachedSource) Refresh(ctx context.Context) (FeeTable, error) {
	table, err := c.backing.Refresh(ctx)
	if err != nil {
		return FeeTable{}, err
	}
	payload, err := json.Marshal(table)
	if err != nil {
		return table, nil
	}
	if err := c.cache.Set(ctx, c.key, string(payload), c.ttl); err != nil {
		c.warn(ctx, "fee table cache write failed", err)
	}
	return table, nil
}

func (c *CachedSource) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithField(ctx, "cache_key", c.key)
	c.logg.Warn(ctx, msg+": "+err.Error())
}
