package domain

import (
	"context"
	"io"
	"time"
)

// ObservationCache caches resolved risk-factor observations so repeated
// simulations of the same portfolio do not re-fetch identical fixings.
// Caching wraps an observer at the boundary; it never changes the engine's
// fail-fast semantics.
type ObservationCache interface {
	Put(ctx context.Context, id string, t time.Time, value float64) error
	Get(ctx context.Context, id string, t time.Time) (float64, error)
}

// LockManager provides distributed locking for batch runs.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
