// Package schedule implements the calendar and cycle arithmetic that contract
// schedules are built from: cycle parsing, period addition with end-of-month
// handling, day-count conventions, business-day adjustment, and schedule
// generation.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CycleUnit is the period unit of a schedule cycle.
type CycleUnit string

const (
	UnitDay      CycleUnit = "D"
	UnitWeek     CycleUnit = "W"
	UnitMonth    CycleUnit = "M"
	UnitQuarter  CycleUnit = "Q"
	UnitHalfYear CycleUnit = "H"
	UnitYear     CycleUnit = "Y"
)

// Stub selects how a partial period at the end of a schedule is handled.
type Stub string

const (
	// StubLong merges a trailing partial period into the previous full period.
	StubLong Stub = "long"
	// StubShort keeps a trailing partial period as its own short period.
	StubShort Stub = "short"
)

// Cycle is a recurring period: a count, a unit, and a stub indicator.
// The textual form is "P<n><unit>L<s>" where s is 0 (long stub) or 1 (short
// stub), e.g. "P3ML1" for three months with a short stub.
type Cycle struct {
	N    int
	Unit CycleUnit
	Stub Stub
}

// ParseCycle parses a cycle specification like "P3ML1" or "P1Y". A missing
// stub suffix defaults to a long stub.
func ParseCycle(s string) (Cycle, error) {
	orig := s
	if !strings.HasPrefix(s, "P") {
		return Cycle{}, fmt.Errorf("schedule: cycle %q: missing P prefix", orig)
	}
	s = s[1:]

	stub := StubLong
	if i := strings.IndexByte(s, 'L'); i >= 0 {
		switch s[i+1:] {
		case "0":
			stub = StubLong
		case "1":
			stub = StubShort
		default:
			return Cycle{}, fmt.Errorf("schedule: cycle %q: invalid stub %q", orig, s[i+1:])
		}
		s = s[:i]
	}

	if len(s) < 2 {
		return Cycle{}, fmt.Errorf("schedule: cycle %q: too short", orig)
	}
	unit := CycleUnit(s[len(s)-1:])
	switch unit {
	case UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitHalfYear, UnitYear:
	default:
		return Cycle{}, fmt.Errorf("schedule: cycle %q: unknown unit %q", orig, unit)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Cycle{}, fmt.Errorf("schedule: cycle %q: invalid count %q", orig, s[:len(s)-1])
	}

	return Cycle{N: n, Unit: unit, Stub: stub}, nil
}

// String renders the cycle in its textual form.
func (c Cycle) String() string {
	s := "L0"
	if c.Stub == StubShort {
		s = "L1"
	}
	return fmt.Sprintf("P%d%s%s", c.N, c.Unit, s)
}

// IsZero reports whether the cycle is unset.
func (c Cycle) IsZero() bool {
	return c.N == 0 && c.Unit == ""
}

// months returns the cycle length in months for month-based units, and
// (0, false) for day/week units.
func (c Cycle) months() (int, bool) {
	switch c.Unit {
	case UnitMonth:
		return c.N, true
	case UnitQuarter:
		return 3 * c.N, true
	case UnitHalfYear:
		return 6 * c.N, true
	case UnitYear:
		return 12 * c.N, true
	default:
		return 0, false
	}
}

// days returns the cycle length in days for day-based units.
func (c Cycle) days() (int, bool) {
	switch c.Unit {
	case UnitDay:
		return c.N, true
	case UnitWeek:
		return 7 * c.N, true
	default:
		return 0, false
	}
}

// AddTo returns anchor advanced by n whole cycles. Month-based cycles use
// EDATE semantics: the day of month is preserved and clamped to the last day
// of the target month when it would overflow. The multiplier is applied in a
// single step so repeated generation from the same anchor never drifts.
func (c Cycle) AddTo(anchor time.Time, n int) time.Time {
	if m, ok := c.months(); ok {
		return addMonthsClamped(anchor, n*m)
	}
	d, _ := c.days()
	return anchor.AddDate(0, 0, n*d)
}

// addMonthsClamped behaves like Excel's EDATE: it advances by whole months and
// clamps the day to the end of the target month instead of letting Go's
// normalization spill into the following month (Jan 31 + 1M = Feb 28/29).
// Grounded on molib utils.AddMonth.
func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	naive := t.AddDate(0, months, 0)
	if naive.Month() == firstOfTarget.Month() {
		return naive
	}
	// Overflowed into the next month; walk back to the last day of the target.
	d := naive
	for d.Month() != firstOfTarget.Month() {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// lastDayOfMonth returns the final calendar day of t's month.
func lastDayOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// isLastDayOfMonth reports whether t falls on the final day of its month.
func isLastDayOfMonth(t time.Time) bool {
	return t.Day() == lastDayOfMonth(t).Day()
}
