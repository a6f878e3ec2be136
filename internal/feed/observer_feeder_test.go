package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfossa/flowsim/internal/observer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingCache struct {
	puts   int
	putErr error
}

func (c *recordingCache) Put(context.Context, string, time.Time, float64) error {
	c.puts++
	return c.putErr
}

func (c *recordingCache) Get(context.Context, string, time.Time) (float64, error) {
	return 0, errors.New("not cached")
}

func TestFeederStoresFixing(t *testing.T) {
	sink := observer.NewInMemory()
	cache := &recordingCache{}
	f := NewObserverFeeder(sink, cache, discardLogger())

	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	f.Handle(context.Background(), Fixing{ID: "UST3M", Time: at, Value: 0.042})

	v, err := sink.Observe(context.Background(), "UST3M", at, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.042, v, 1e-12)
	assert.Equal(t, 1, cache.puts)
}

func TestFeederWithoutCache(t *testing.T) {
	sink := observer.NewInMemory()
	f := NewObserverFeeder(sink, nil, discardLogger())

	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	f.Handle(context.Background(), Fixing{ID: "UST3M", Time: at, Value: 0.042})

	_, err := sink.Observe(context.Background(), "UST3M", at, nil, nil)
	assert.NoError(t, err)
}

func TestFeederCacheFailureIsNonFatal(t *testing.T) {
	sink := observer.NewInMemory()
	cache := &recordingCache{putErr: errors.New("redis down")}
	f := NewObserverFeeder(sink, cache, discardLogger())

	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	f.Handle(context.Background(), Fixing{ID: "UST3M", Time: at, Value: 0.042})

	// The in-process series still took the fixing.
	v, err := sink.Observe(context.Background(), "UST3M", at, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.042, v, 1e-12)
}

func TestRunWithoutSubscriptionsExits(t *testing.T) {
	f := NewFixingsWS("wss://example.com/stream", nil, nil, discardLogger())
	// An empty subscription list exits immediately rather than dialing.
	assert.NoError(t, f.Run(context.Background()))
}
