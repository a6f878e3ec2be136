package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRegularQuarters(t *testing.T) {
	c, err := ParseCycle("P3ML1")
	require.NoError(t, err)

	dates, err := Generate(date(2020, time.January, 2), c, date(2021, time.January, 2), EOMSameDay)
	require.NoError(t, err)

	want := []time.Time{
		date(2020, time.January, 2),
		date(2020, time.April, 2),
		date(2020, time.July, 2),
		date(2020, time.October, 2),
		date(2021, time.January, 2),
	}
	assert.Equal(t, want, dates)
}

func TestGenerateShortStub(t *testing.T) {
	c, err := ParseCycle("P1ML1")
	require.NoError(t, err)

	dates, err := Generate(date(2020, time.January, 15), c, date(2020, time.March, 1), EOMSameDay)
	require.NoError(t, err)

	// The trailing partial period stays as its own short period.
	want := []time.Time{
		date(2020, time.January, 15),
		date(2020, time.February, 15),
		date(2020, time.March, 1),
	}
	assert.Equal(t, want, dates)
}

func TestGenerateLongStub(t *testing.T) {
	c, err := ParseCycle("P1ML0")
	require.NoError(t, err)

	dates, err := Generate(date(2020, time.January, 15), c, date(2020, time.March, 1), EOMSameDay)
	require.NoError(t, err)

	// The partial period merges into the previous full one.
	want := []time.Time{
		date(2020, time.January, 15),
		date(2020, time.March, 1),
	}
	assert.Equal(t, want, dates)
}

func TestGenerateEndOfMonthConvention(t *testing.T) {
	c, err := ParseCycle("P1ML1")
	require.NoError(t, err)

	dates, err := Generate(date(2024, time.February, 29), c, date(2024, time.May, 31), EOMEndOfMonth)
	require.NoError(t, err)
	want := []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 31),
		date(2024, time.April, 30),
		date(2024, time.May, 31),
	}
	assert.Equal(t, want, dates)

	// Same-day keeps the 29th where possible.
	dates, err = Generate(date(2024, time.February, 29), c, date(2024, time.May, 31), EOMSameDay)
	require.NoError(t, err)
	want = []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 29),
		date(2024, time.April, 29),
		date(2024, time.May, 29),
		date(2024, time.May, 31),
	}
	assert.Equal(t, want, dates)
}

func TestGenerateDay31NoDrift(t *testing.T) {
	c, err := ParseCycle("P1ML1")
	require.NoError(t, err)

	dates, err := Generate(date(2024, time.January, 31), c, date(2024, time.May, 31), EOMSameDay)
	require.NoError(t, err)

	// Anchored indexing recovers the 31st after short months.
	want := []time.Time{
		date(2024, time.January, 31),
		date(2024, time.February, 29),
		date(2024, time.March, 31),
		date(2024, time.April, 30),
		date(2024, time.May, 31),
	}
	assert.Equal(t, want, dates)
}

func TestGenerateDegenerateInputs(t *testing.T) {
	c, err := ParseCycle("P1ML1")
	require.NoError(t, err)

	// Zero cycle falls back to the two endpoints.
	dates, err := Generate(date(2020, time.January, 1), Cycle{}, date(2021, time.January, 1), EOMSameDay)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2020, time.January, 1), date(2021, time.January, 1)}, dates)

	// start == end collapses to one date.
	dates, err = Generate(date(2020, time.January, 1), c, date(2020, time.January, 1), EOMSameDay)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2020, time.January, 1)}, dates)

	// end before start is an error.
	_, err = Generate(date(2021, time.January, 1), c, date(2020, time.January, 1), EOMSameDay)
	assert.Error(t, err)
}

func TestGenerateArray(t *testing.T) {
	q, err := ParseCycle("P3ML1")
	require.NoError(t, err)
	h, err := ParseCycle("P6ML1")
	require.NoError(t, err)

	dates, err := GenerateArray(
		[]time.Time{date(2020, time.January, 1), date(2020, time.January, 1)},
		[]Cycle{q, h},
		date(2021, time.January, 1),
		EOMSameDay,
	)
	require.NoError(t, err)

	// The half-year dates collide with the quarterly ones and deduplicate.
	want := []time.Time{
		date(2020, time.January, 1),
		date(2020, time.April, 1),
		date(2020, time.July, 1),
		date(2020, time.October, 1),
		date(2021, time.January, 1),
	}
	assert.Equal(t, want, dates)
}

func TestGenerateArrayLengthMismatch(t *testing.T) {
	q, err := ParseCycle("P3ML1")
	require.NoError(t, err)

	_, err = GenerateArray([]time.Time{date(2020, time.January, 1)}, []Cycle{q, q}, date(2021, time.January, 1), EOMSameDay)
	assert.Error(t, err)
}
