package observer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfossa/flowsim/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInMemoryObserveAtOrBefore(t *testing.T) {
	o := NewInMemory()
	o.Add("UST5Y", date(2024, time.January, 1), 0.03)
	o.Add("UST5Y", date(2024, time.June, 1), 0.04)

	ctx := context.Background()

	// An exact hit returns the point itself.
	v, err := o.Observe(ctx, "UST5Y", date(2024, time.January, 1), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, v, 1e-12)

	// Between points the earlier one holds.
	v, err = o.Observe(ctx, "UST5Y", date(2024, time.March, 1), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, v, 1e-12)

	// After the last point the last one holds.
	v, err = o.Observe(ctx, "UST5Y", date(2025, time.January, 1), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, v, 1e-12)
}

func TestInMemoryObserveMisses(t *testing.T) {
	o := NewInMemory()
	o.Add("UST5Y", date(2024, time.June, 1), 0.04)

	ctx := context.Background()

	// Before the first point there is nothing to observe.
	_, err := o.Observe(ctx, "UST5Y", date(2024, time.January, 1), nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Unknown identifiers fail rather than defaulting to zero.
	_, err = o.Observe(ctx, "NOPE", date(2024, time.June, 1), nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInMemoryAddKeepsSorted(t *testing.T) {
	o := NewInMemory()
	o.Add("CPI", date(2024, time.June, 1), 110)
	o.Add("CPI", date(2024, time.January, 1), 100)

	v, err := o.Observe(context.Background(), "CPI", date(2024, time.March, 1), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-12)
}

func TestInMemoryConstant(t *testing.T) {
	o := NewInMemory()
	o.AddConstant("FX", 1.1)

	v, err := o.Observe(context.Background(), "FX", date(1970, time.January, 1), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, v, 1e-12)
}

func TestInMemoryFromSeries(t *testing.T) {
	o := NewInMemoryFromSeries(map[string][]Point{
		"UST5Y": {
			{Time: date(2024, time.June, 1), Value: 0.04},
			{Time: date(2024, time.January, 1), Value: 0.03},
		},
	})

	v, err := o.Observe(context.Background(), "UST5Y", date(2024, time.February, 1), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, v, 1e-12)
}
