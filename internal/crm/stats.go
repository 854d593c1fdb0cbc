package crm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const statsCacheKey = "crm:stats"

// StatsCache serves funnel aggregates from Redis, deduplicating
// concurrent recomputation behind a singleflight group so a cold cache
// triggers exactly one database scan.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewStatsCache constructs a StatsCache.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Get returns cached stats or recomputes them via compute.
func (c *StatsCache) Get(ctx context.Context, compute func(context.Context) (Stats, error)) (Stats, error) {
	if c.client != nil {
		payload, err := c.client.Get(ctx, statsCacheKey).Bytes()
		if err == nil {
			var stats Stats
			if err := json.Unmarshal(payload, &stats); err == nil {
				return stats, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// Redis being down degrades to recomputation, not failure.
			_ = err
		}
	}

	value, err, _ := c.group.Do(statsCacheKey, func() (any, error) {
		stats, err := compute(ctx)
		if err != nil {
			return Stats{}, err
		}
		stats.GeneratedAt = time.Now().UTC()
		if c.client != nil {
			if payload, err := json.Marshal(stats); err == nil {
				_ = c.client.Set(ctx, statsCacheKey, payload, c.ttl).Err()
			}
		}
		return stats, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return value.(Stats), nil
}

// Invalidate drops the cached aggregate after funnel mutations.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	_ = c.client.Del(ctx, statsCacheKey).Err()
}
