package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
)

// Cached wraps another observer with an observation cache. Caching is a
// boundary concern: a cache miss falls through to the inner observer, a
// cache write failure is logged and ignored, and resolution failures
// propagate unchanged so the engine's fail-fast semantics are preserved.
type Cached struct {
	next   domain.RiskFactorObserver
	cache  domain.ObservationCache
	logger *slog.Logger
}

// NewCached decorates next with cache.
func NewCached(next domain.RiskFactorObserver, cache domain.ObservationCache, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		logger: logger.With(slog.String("component", "observer_cache")),
	}
}

// Observe resolves through the cache first, then through the inner observer.
func (c *Cached) Observe(ctx context.Context, id string, t time.Time, state *domain.ContractState, terms *domain.ContractTerms) (float64, error) {
	if v, err := c.cache.Get(ctx, id, t); err == nil {
		return v, nil
	}

	v, err := c.next.Observe(ctx, id, t, state, terms)
	if err != nil {
		return 0, err
	}

	if err := c.cache.Put(ctx, id, t, v); err != nil {
		c.logger.WarnContext(ctx, "observation cache write failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.RiskFactorObserver = (*Cached)(nil)
