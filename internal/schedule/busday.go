package schedule

import (
	"fmt"
	"time"
)

// Calendar decides which days count as business days.
type Calendar interface {
	IsBusinessDay(t time.Time) bool
}

// NoHolidayCalendar treats every calendar day as a business day.
type NoHolidayCalendar struct{}

// IsBusinessDay always reports true.
func (NoHolidayCalendar) IsBusinessDay(time.Time) bool { return true }

// WeekdayCalendar treats Monday through Friday as business days.
type WeekdayCalendar struct{}

// IsBusinessDay reports whether t is a weekday.
func (WeekdayCalendar) IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// HolidayCalendar is a weekday calendar with an additional holiday list.
type HolidayCalendar struct {
	holidays map[string]struct{}
}

// NewHolidayCalendar builds a HolidayCalendar from YYYY-MM-DD holiday dates.
func NewHolidayCalendar(dates []string) *HolidayCalendar {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return &HolidayCalendar{holidays: set}
}

// IsBusinessDay reports whether t is a weekday that is not a listed holiday.
func (c *HolidayCalendar) IsBusinessDay(t time.Time) bool {
	if !(WeekdayCalendar{}).IsBusinessDay(t) {
		return false
	}
	_, holiday := c.holidays[t.Format("2006-01-02")]
	return !holiday
}

// ParseCalendar maps a calendar code to an implementation. "NC" means no
// holidays at all, "WD" means weekends only.
func ParseCalendar(s string) (Calendar, error) {
	switch s {
	case "", "NC":
		return NoHolidayCalendar{}, nil
	case "WD", "MF":
		return WeekdayCalendar{}, nil
	default:
		return nil, fmt.Errorf("schedule: unknown calendar %q", s)
	}
}

// BusinessDayConvention combines a shift rule (following, preceding, modified
// variants) with whether accrual calculations use the shifted or the original
// date. "CS" conventions calculate from the unshifted date; "SC" conventions
// shift first.
type BusinessDayConvention string

const (
	BDCNone BusinessDayConvention = "NOS"

	BDCShiftCalcFollowing    BusinessDayConvention = "SCF"
	BDCShiftCalcModFollowing BusinessDayConvention = "SCMF"
	BDCCalcShiftFollowing    BusinessDayConvention = "CSF"
	BDCCalcShiftModFollowing BusinessDayConvention = "CSMF"
	BDCShiftCalcPreceding    BusinessDayConvention = "SCP"
	BDCShiftCalcModPreceding BusinessDayConvention = "SCMP"
	BDCCalcShiftPreceding    BusinessDayConvention = "CSP"
	BDCCalcShiftModPreceding BusinessDayConvention = "CSMP"
)

// ParseBusinessDayConvention validates a business-day convention code.
func ParseBusinessDayConvention(s string) (BusinessDayConvention, error) {
	switch BusinessDayConvention(s) {
	case "", BDCNone:
		return BDCNone, nil
	case BDCShiftCalcFollowing, BDCShiftCalcModFollowing, BDCCalcShiftFollowing,
		BDCCalcShiftModFollowing, BDCShiftCalcPreceding, BDCShiftCalcModPreceding,
		BDCCalcShiftPreceding, BDCCalcShiftModPreceding:
		return BusinessDayConvention(s), nil
	default:
		return "", fmt.Errorf("schedule: unknown business day convention %q", s)
	}
}

// Adjust shifts t to a business day according to the convention's shift rule.
func (bdc BusinessDayConvention) Adjust(t time.Time, cal Calendar) time.Time {
	if cal == nil {
		cal = WeekdayCalendar{}
	}
	switch bdc {
	case BDCNone, "":
		return t
	case BDCShiftCalcFollowing, BDCCalcShiftFollowing:
		return following(t, cal)
	case BDCShiftCalcModFollowing, BDCCalcShiftModFollowing:
		return modifiedFollowing(t, cal)
	case BDCShiftCalcPreceding, BDCCalcShiftPreceding:
		return preceding(t, cal)
	case BDCShiftCalcModPreceding, BDCCalcShiftModPreceding:
		return modifiedPreceding(t, cal)
	default:
		return t
	}
}

// ShiftsCalcTime reports whether accrual calculations use the shifted date
// ("SC" conventions) rather than the unadjusted schedule date.
func (bdc BusinessDayConvention) ShiftsCalcTime() bool {
	switch bdc {
	case BDCShiftCalcFollowing, BDCShiftCalcModFollowing,
		BDCShiftCalcPreceding, BDCShiftCalcModPreceding:
		return true
	default:
		return false
	}
}

func following(t time.Time, cal Calendar) time.Time {
	for !cal.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func preceding(t time.Time, cal Calendar) time.Time {
	for !cal.IsBusinessDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// modifiedFollowing rolls forward, but falls back to preceding when the roll
// would cross into the next month. Grounded on molib swap/calendar.go.
func modifiedFollowing(t time.Time, cal Calendar) time.Time {
	adj := following(t, cal)
	if adj.Month() != t.Month() {
		return preceding(t, cal)
	}
	return adj
}

func modifiedPreceding(t time.Time, cal Calendar) time.Time {
	adj := preceding(t, cal)
	if adj.Month() != t.Month() {
		return following(t, cal)
	}
	return adj
}
