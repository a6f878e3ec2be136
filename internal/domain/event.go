package domain

import (
	"fmt"
	"sort"
	"time"
)

// EventType identifies the kind of contract event.
type EventType string

const (
	EventAD   EventType = "AD"   // analysis / monitoring
	EventIED  EventType = "IED"  // initial exchange
	EventPRD  EventType = "PRD"  // purchase
	EventFP   EventType = "FP"   // fee payment
	EventIPCI EventType = "IPCI" // interest capitalization
	EventIPCB EventType = "IPCB" // interest calculation base fixing
	EventRR   EventType = "RR"   // rate reset (observed)
	EventRRF  EventType = "RRF"  // rate reset (fixed next rate)
	EventSC   EventType = "SC"   // scaling index revision
	EventDV   EventType = "DV"   // dividend
	EventIP   EventType = "IP"   // interest payment
	EventPP   EventType = "PP"   // principal prepayment
	EventPY   EventType = "PY"   // prepayment penalty
	EventPI   EventType = "PI"   // principal increase
	EventPR   EventType = "PR"   // principal redemption
	EventMD   EventType = "MD"   // maturity
	EventXD   EventType = "XD"   // exercise
	EventSTD  EventType = "STD"  // settlement
	EventCE   EventType = "CE"   // credit event
	EventTD   EventType = "TD"   // termination
	EventMR   EventType = "MR"   // margin call
)

// eventSequence is the total order applied to events sharing a timestamp.
// Initial exchange precedes rate resets, which precede interest payments,
// which precede principal redemptions, which precede maturity. A prepayment
// follows the interest payment it shares a date with and its penalty follows
// the prepayment. Termination settles after every other cash event, and
// analysis events sort last so they observe fully settled state.
var eventSequence = map[EventType]int{
	EventIED:  1,
	EventPRD:  2,
	EventFP:   3,
	EventIPCI: 4,
	EventIPCB: 5,
	EventRRF:  6,
	EventRR:   7,
	EventSC:   8,
	EventDV:   9,
	EventIP:   10,
	EventPP:   11,
	EventPY:   12,
	EventPI:   13,
	EventPR:   14,
	EventMD:   15,
	EventXD:   16,
	EventSTD:  17,
	EventCE:   18,
	EventTD:   19,
	EventMR:   20,
	EventAD:   21,
}

// Sequence returns the fixed tie-break rank of the event type. Unknown types
// sort after every known one.
func (et EventType) Sequence() int {
	if s, ok := eventSequence[et]; ok {
		return s
	}
	return len(eventSequence) + 1
}

// ContractEvent is one dated event in a contract's life: a signed payoff in a
// currency, plus the contract state immediately before and after the event.
// Events are immutable once appended to a history.
type ContractEvent struct {
	Type EventType
	// Time is the (possibly business-day adjusted) event time that drives
	// cash timing.
	Time time.Time
	// CalcTime is the unadjusted calculation time driving accrual math. Zero
	// means the event time is also the calculation time.
	CalcTime  time.Time
	Payoff    float64
	Currency  string
	PreState  ContractState
	PostState ContractState
	Sequence  int
}

// NewEvent builds an event with its sequence number resolved from the fixed
// per-type table.
func NewEvent(et EventType, t time.Time, calcTime time.Time, currency string) ContractEvent {
	return ContractEvent{
		Type:     et,
		Time:     t,
		CalcTime: calcTime,
		Currency: currency,
		Sequence: et.Sequence(),
	}
}

// CalculationTime returns the time accrual math should use: the unadjusted
// calculation time when present, else the event time.
func (e ContractEvent) CalculationTime() time.Time {
	if !e.CalcTime.IsZero() {
		return e.CalcTime
	}
	return e.Time
}

// Less orders events by (time, sequence).
func (e ContractEvent) Less(other ContractEvent) bool {
	if !e.Time.Equal(other.Time) {
		return e.Time.Before(other.Time)
	}
	return e.Sequence < other.Sequence
}

// MergeCongruent nets two events sharing identical time, type, and currency
// into one: payoffs are summed and the second event's post-state is kept.
// This is the net-settlement primitive used by composite contracts.
func MergeCongruent(a, b ContractEvent) (ContractEvent, error) {
	if a.Type != b.Type || !a.Time.Equal(b.Time) || a.Currency != b.Currency {
		return ContractEvent{}, fmt.Errorf(
			"domain: events not congruent: (%s %s %s) vs (%s %s %s)",
			a.Type, a.Time.Format("2006-01-02"), a.Currency,
			b.Type, b.Time.Format("2006-01-02"), b.Currency,
		)
	}
	merged := a
	merged.Payoff = a.Payoff + b.Payoff
	merged.PostState = b.PostState
	return merged, nil
}

// SortEvents stable-sorts events in place by (time, sequence).
func SortEvents(events []ContractEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
}

// EventSchedule is an ordered sequence of events for one contract. The
// accessors return fresh slices; the schedule itself is never mutated.
type EventSchedule struct {
	ContractID string
	events     []ContractEvent
}

// NewEventSchedule builds a schedule from events, sorting them by
// (time, sequence).
func NewEventSchedule(contractID string, events []ContractEvent) EventSchedule {
	es := make([]ContractEvent, len(events))
	copy(es, events)
	SortEvents(es)
	return EventSchedule{ContractID: contractID, events: es}
}

// Events returns a copy of the ordered event sequence.
func (s EventSchedule) Events() []ContractEvent {
	out := make([]ContractEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events.
func (s EventSchedule) Len() int { return len(s.events) }

// FilterType returns a schedule holding only events of the given types.
func (s EventSchedule) FilterType(types ...EventType) EventSchedule {
	want := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []ContractEvent
	for _, e := range s.events {
		if _, ok := want[e.Type]; ok {
			out = append(out, e)
		}
	}
	return EventSchedule{ContractID: s.ContractID, events: out}
}

// FilterRange returns a schedule holding only events with from <= time < to.
func (s EventSchedule) FilterRange(from, to time.Time) EventSchedule {
	var out []ContractEvent
	for _, e := range s.events {
		if !e.Time.Before(from) && e.Time.Before(to) {
			out = append(out, e)
		}
	}
	return EventSchedule{ContractID: s.ContractID, events: out}
}

// Merge unions this schedule with another and re-sorts. The receiver's
// contract id is kept.
func (s EventSchedule) Merge(other EventSchedule) EventSchedule {
	merged := make([]ContractEvent, 0, len(s.events)+len(other.events))
	merged = append(merged, s.events...)
	merged = append(merged, other.events...)
	SortEvents(merged)
	return EventSchedule{ContractID: s.ContractID, events: merged}
}
