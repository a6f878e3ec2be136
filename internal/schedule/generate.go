package schedule

import (
	"fmt"
	"sort"
	"time"
)

// EndOfMonthConvention controls whether monthly-or-longer cycles anchored on
// a month-end stick to month ends.
type EndOfMonthConvention string

const (
	// EOMSameDay keeps the anchor's day of month (clamped on overflow).
	EOMSameDay EndOfMonthConvention = "SD"
	// EOMEndOfMonth snaps every generated date to its own month end whenever
	// the anchor falls on a month end.
	EOMEndOfMonth EndOfMonthConvention = "EOM"
)

// ParseEndOfMonthConvention validates an end-of-month convention code.
func ParseEndOfMonthConvention(s string) (EndOfMonthConvention, error) {
	switch EndOfMonthConvention(s) {
	case "", EOMSameDay:
		return EOMSameDay, nil
	case EOMEndOfMonth:
		return EOMEndOfMonth, nil
	default:
		return "", fmt.Errorf("schedule: unknown end-of-month convention %q", s)
	}
}

// Generate produces the schedule dates from start to end at integer multiples
// of the cycle measured from the anchor. Every date is computed directly from
// the anchor index, never by re-adding the cycle to a previously clamped
// result, so a day-31 anchor keeps resolving from the 31st each period.
//
// The end date is always part of the result. A trailing partial period is
// kept as its own short period under a short stub, or merged into the last
// full period under a long stub.
func Generate(start time.Time, c Cycle, end time.Time, eom EndOfMonthConvention) ([]time.Time, error) {
	if c.IsZero() {
		return []time.Time{start, end}, nil
	}
	if end.Before(start) {
		return nil, fmt.Errorf("schedule: end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if start.Equal(end) {
		return []time.Time{start}, nil
	}

	_, monthly := c.months()
	snapEOM := eom == EOMEndOfMonth && monthly && isLastDayOfMonth(start)

	var dates []time.Time
	for i := 0; ; i++ {
		d := c.AddTo(start, i)
		if snapEOM {
			d = lastDayOfMonth(d)
		}
		if d.After(end) {
			break
		}
		dates = append(dates, d)
		if len(dates) > maxScheduleDates {
			return nil, fmt.Errorf("schedule: cycle %s generates more than %d dates", c, maxScheduleDates)
		}
	}

	if len(dates) == 0 || !dates[len(dates)-1].Equal(end) {
		// Partial trailing period.
		if c.Stub == StubLong && len(dates) > 1 {
			dates = dates[:len(dates)-1]
		}
		dates = append(dates, end)
	}

	return dates, nil
}

// maxScheduleDates guards against runaway generation from tiny cycles over
// century-scale horizons.
const maxScheduleDates = 100_000

// GenerateArray unions one sub-schedule per (anchor, cycle) pair up to end,
// deduplicating exact date collisions. Used for irregular redemption arrays.
// The anchors and cycles slices must have equal length.
func GenerateArray(anchors []time.Time, cycles []Cycle, end time.Time, eom EndOfMonthConvention) ([]time.Time, error) {
	if len(anchors) != len(cycles) {
		return nil, fmt.Errorf("schedule: %d anchors but %d cycles", len(anchors), len(cycles))
	}

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for i := range anchors {
		sub, err := Generate(anchors[i], cycles[i], end, eom)
		if err != nil {
			return nil, err
		}
		for _, d := range sub {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
