package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfossa/flowsim/internal/domain"
)

// ObservationCache implements domain.ObservationCache using Redis strings.
// Each resolved observation is stored at key "rf:{id}:{unix}" so repeated
// simulations of the same portfolio hit the cache instead of the upstream
// observer.
type ObservationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewObservationCache creates an ObservationCache backed by the given Client.
// A non-positive ttl stores observations without expiry.
func NewObservationCache(c *Client, ttl time.Duration) *ObservationCache {
	return &ObservationCache{rdb: c.Underlying(), ttl: ttl}
}

func observationKey(id string, t time.Time) string {
	return fmt.Sprintf("rf:%s:%d", id, t.Unix())
}

// Put stores one resolved observation.
func (oc *ObservationCache) Put(ctx context.Context, id string, t time.Time, value float64) error {
	val := strconv.FormatFloat(value, 'f', -1, 64)
	if err := oc.rdb.Set(ctx, observationKey(id, t), val, oc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: put observation %s: %w", id, err)
	}
	return nil
}

// Get retrieves a cached observation. It returns domain.ErrNotFound when the
// key does not exist.
func (oc *ObservationCache) Get(ctx context.Context, id string, t time.Time) (float64, error) {
	val, err := oc.rdb.Get(ctx, observationKey(id, t)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get observation %s: %w", id, err)
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse observation %s: %w", id, err)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.ObservationCache = (*ObservationCache)(nil)
