package feed

import (
	"context"
	"log/slog"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/observer"
)

// ObserverFeeder routes incoming fixings into the in-process observer and,
// when configured, the shared observation cache, so that simulations pick up
// new fixings without restarting the process.
type ObserverFeeder struct {
	sink   *observer.InMemory
	cache  domain.ObservationCache
	logger *slog.Logger
}

// NewObserverFeeder creates a feeder writing into sink. cache may be nil.
func NewObserverFeeder(sink *observer.InMemory, cache domain.ObservationCache, logger *slog.Logger) *ObserverFeeder {
	return &ObserverFeeder{
		sink:   sink,
		cache:  cache,
		logger: logger.With(slog.String("component", "observer_feeder")),
	}
}

// Handle stores one fixing. Cache write failures are logged and ignored; the
// in-process series remains authoritative.
func (f *ObserverFeeder) Handle(ctx context.Context, fx Fixing) {
	f.sink.Add(fx.ID, fx.Time, fx.Value)
	f.logger.DebugContext(ctx, "fixing stored",
		slog.String("id", fx.ID),
		slog.Time("time", fx.Time),
		slog.Float64("value", fx.Value),
	)

	if f.cache == nil {
		return
	}
	if err := f.cache.Put(ctx, fx.ID, fx.Time, fx.Value); err != nil {
		f.logger.WarnContext(ctx, "fixing cache write failed",
			slog.String("id", fx.ID),
			slog.String("error", err.Error()),
		)
	}
}
