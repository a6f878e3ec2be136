package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestYearFractionDegenerateInterval(t *testing.T) {
	d := date(2024, time.June, 1)
	for _, dc := range []DayCount{ActualActual, Actual360, Actual365, ThirtyE360, ThirtyU360, ThirtyE360ISDA, Bus252} {
		assert.Zero(t, YearFraction(dc, d, d, time.Time{}, nil), string(dc))
		assert.Zero(t, YearFraction(dc, d, d.AddDate(0, 0, -10), time.Time{}, nil), string(dc))
	}
}

func TestYearFractionActual360(t *testing.T) {
	// 182 actual days in the first half of 2024.
	got := YearFraction(Actual360, date(2024, time.January, 1), date(2024, time.July, 1), time.Time{}, nil)
	assert.InDelta(t, 182.0/360.0, got, 1e-12)
}

func TestYearFractionActual365(t *testing.T) {
	got := YearFraction(Actual365, date(2024, time.January, 1), date(2024, time.July, 1), time.Time{}, nil)
	assert.InDelta(t, 182.0/365.0, got, 1e-12)
}

func TestYearFractionActualActual(t *testing.T) {
	// A full calendar year is exactly one, leap or not.
	assert.InDelta(t, 1.0, YearFraction(ActualActual, date(2023, time.January, 1), date(2024, time.January, 1), time.Time{}, nil), 1e-12)
	assert.InDelta(t, 1.0, YearFraction(ActualActual, date(2024, time.January, 1), date(2025, time.January, 1), time.Time{}, nil), 1e-12)

	// Straddling a year boundary splits at Jan 1 with each year's own length.
	got := YearFraction(ActualActual, date(2023, time.July, 1), date(2024, time.July, 1), time.Time{}, nil)
	want := 184.0/365.0 + 182.0/366.0
	assert.InDelta(t, want, got, 1e-12)
}

func TestYearFractionThirtyE360(t *testing.T) {
	// Both month-end 31sts truncate to 30.
	got := YearFraction(ThirtyE360, date(2024, time.January, 31), date(2024, time.July, 31), time.Time{}, nil)
	assert.InDelta(t, 0.5, got, 1e-12)

	got = YearFraction(ThirtyE360, date(2024, time.January, 30), date(2024, time.March, 31), time.Time{}, nil)
	assert.InDelta(t, 60.0/360.0, got, 1e-12)
}

func TestYearFractionThirtyU360(t *testing.T) {
	got := YearFraction(ThirtyU360, date(2024, time.January, 31), date(2024, time.July, 31), time.Time{}, nil)
	assert.InDelta(t, 0.5, got, 1e-12)

	// The end-of-period 31st survives when the start day is below 30.
	got = YearFraction(ThirtyU360, date(2024, time.January, 15), date(2024, time.March, 31), time.Time{}, nil)
	assert.InDelta(t, float64(30*2+(31-15))/360.0, got, 1e-12)
}

func TestYearFractionThirtyE360ISDA(t *testing.T) {
	maturity := date(2024, time.February, 29)

	// February month-end keeps its actual day in the maturity period.
	got := YearFraction(ThirtyE360ISDA, date(2024, time.January, 30), maturity, maturity, nil)
	assert.InDelta(t, 29.0/360.0, got, 1e-12)

	// The same interval inside the schedule snaps the month-end to 30.
	got = YearFraction(ThirtyE360ISDA, date(2024, time.January, 30), date(2024, time.February, 29), date(2030, time.January, 1), nil)
	assert.InDelta(t, 30.0/360.0, got, 1e-12)

	// A month-end start always snaps to 30.
	got = YearFraction(ThirtyE360ISDA, date(2024, time.February, 29), date(2024, time.May, 31), date(2030, time.January, 1), nil)
	assert.InDelta(t, float64(30*3+(30-30))/360.0, got, 1e-12)
}

func TestYearFractionBus252(t *testing.T) {
	// Monday to the next Monday spans five weekdays.
	got := YearFraction(Bus252, date(2024, time.June, 3), date(2024, time.June, 10), time.Time{}, nil)
	assert.InDelta(t, 5.0/252.0, got, 1e-12)

	// A listed holiday drops one business day.
	cal := NewHolidayCalendar([]string{"2024-06-05"})
	got = YearFraction(Bus252, date(2024, time.June, 3), date(2024, time.June, 10), time.Time{}, cal)
	assert.InDelta(t, 4.0/252.0, got, 1e-12)
}

func TestParseDayCount(t *testing.T) {
	dc, err := ParseDayCount("30E360")
	assert.NoError(t, err)
	assert.Equal(t, ThirtyE360, dc)

	_, err = ParseDayCount("ACT/365")
	assert.Error(t, err)
}
