package schedule

import (
	"fmt"
	"time"
)

// DayCount identifies a day-count convention for converting a date interval
// into a fractional year.
type DayCount string

const (
	// ActualActual is Actual/Actual (ISDA): actual days over 365 or 366,
	// split per calendar year.
	ActualActual DayCount = "AA"
	// Actual360 is Actual/360.
	Actual360 DayCount = "A360"
	// Actual365 is Actual/365 Fixed.
	Actual365 DayCount = "A365"
	// ThirtyE360 is 30E/360 (Eurobond basis).
	ThirtyE360 DayCount = "30E360"
	// ThirtyU360 is 30/360 (US bond basis).
	ThirtyU360 DayCount = "30U360"
	// ThirtyE360ISDA is 30E/360 ISDA, which special-cases the period ending
	// on the maturity date.
	ThirtyE360ISDA DayCount = "30E360ISDA"
	// Bus252 counts business days over 252.
	Bus252 DayCount = "B252"
)

// ParseDayCount validates and normalizes a day-count convention code.
func ParseDayCount(s string) (DayCount, error) {
	switch DayCount(s) {
	case ActualActual, Actual360, Actual365, ThirtyE360, ThirtyU360, ThirtyE360ISDA, Bus252:
		return DayCount(s), nil
	default:
		return "", fmt.Errorf("schedule: unknown day count convention %q", s)
	}
}

// daysBetween returns the whole number of days from start to end. Dates are
// expected at midnight UTC.
func daysBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}

// YearFraction computes the fraction of a year between start and end under
// the given convention. The maturity date is only consulted by 30E360ISDA;
// the calendar is only consulted by B252 (nil defaults to weekdays).
// start == end yields exactly zero for every convention.
func YearFraction(dc DayCount, start, end time.Time, maturity time.Time, cal Calendar) float64 {
	if !start.Before(end) {
		return 0
	}

	switch dc {
	case Actual360:
		return daysBetween(start, end) / 360.0

	case Actual365:
		return daysBetween(start, end) / 365.0

	case ActualActual:
		return actualActualISDA(start, end)

	case ThirtyE360:
		d1, d2 := min30(start.Day()), min30(end.Day())
		return thirty360(start, end, d1, d2)

	case ThirtyU360:
		d1 := start.Day()
		d2 := end.Day()
		if d1 == 31 {
			d1 = 30
		}
		if d2 == 31 && d1 == 30 {
			d2 = 30
		}
		return thirty360(start, end, d1, d2)

	case ThirtyE360ISDA:
		d1, d2 := start.Day(), end.Day()
		if isLastDayOfMonth(start) {
			d1 = 30
		}
		// The final period's end date keeps its actual day when it falls in
		// February; otherwise month-end snaps to 30.
		endIsMaturity := !maturity.IsZero() && end.Equal(maturity)
		if isLastDayOfMonth(end) && !(endIsMaturity && end.Month() == time.February) {
			d2 = 30
		}
		return thirty360(start, end, d1, d2)

	case Bus252:
		if cal == nil {
			cal = WeekdayCalendar{}
		}
		return float64(businessDaysBetween(start, end, cal)) / 252.0

	default:
		return daysBetween(start, end) / 365.0
	}
}

func min30(d int) int {
	if d > 30 {
		return 30
	}
	return d
}

func thirty360(start, end time.Time, d1, d2 int) float64 {
	y1, m1 := start.Year(), int(start.Month())
	y2, m2 := end.Year(), int(end.Month())
	return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
}

// actualActualISDA splits the interval at calendar year boundaries and
// divides each piece by that year's actual length.
func actualActualISDA(start, end time.Time) float64 {
	if start.Year() == end.Year() {
		return daysBetween(start, end) / yearLength(start.Year())
	}

	frac := 0.0
	// Head: start to Jan 1 of the following year.
	headEnd := time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	frac += daysBetween(start, headEnd) / yearLength(start.Year())
	// Whole middle years.
	frac += float64(end.Year() - start.Year() - 1)
	// Tail: Jan 1 of end's year to end.
	tailStart := time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	frac += daysBetween(tailStart, end) / yearLength(end.Year())
	return frac
}

func yearLength(year int) float64 {
	if isLeapYear(year) {
		return 366
	}
	return 365
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// businessDaysBetween counts business days in the half-open interval
// [start, end).
func businessDaysBetween(start, end time.Time, cal Calendar) int {
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if cal.IsBusinessDay(d) {
			n++
		}
	}
	return n
}
