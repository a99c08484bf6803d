package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/arbor/pkg/models"
)

// StatsCache is a read-through cache for per-entity related-event stats. The
// tree endpoint recomputes stats for every node it returns, so even a short
// TTL absorbs most of the aggregation load. Cache failures are logged and
// treated as misses; the store stays authoritative.
type StatsCache struct {
	client *Client
	ttl    time.Duration
	logger ectologger.Logger
}

// NewStatsCache creates a stats cache with the given TTL.
func NewStatsCache(client *Client, ttl time.Duration, logger ectologger.Logger) *StatsCache {
	return &StatsCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func statsKey(source, entityID string) string {
	return fmt.Sprintf("arbor:stats:%s:%s", source, entityID)
}

// Get returns the cached stats for an entity, if present.
func (c *StatsCache) Get(ctx context.Context, source, entityID string) (*models.Stats, bool) {
	raw, err := c.client.Get(ctx, statsKey(source, entityID))
	if err != nil {
		if err != goredis.Nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Stats cache read failed")
		}
		return nil, false
	}

	var stats models.Stats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Stats cache entry unreadable")
		return nil, false
	}

	return &stats, true
}

// Set stores stats for an entity.
func (c *StatsCache) Set(ctx context.Context, source, entityID string, stats *models.Stats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(source, entityID), data, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Stats cache write failed")
	}
}
