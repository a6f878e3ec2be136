// Package contracts implements the contract type catalog: one
// {schedule generator, initial state, payoff table, transition table} per
// contract type, registered with the engine under its type tag.
//
// Implemented in depth: PAM (principal at maturity / bullet), LAM (linear
// amortizer), SWAP (multi-leg composite), CAPFL (cap/floor on an underlier),
// and CEG (credit enhancement guarantee). Further types plug in through
// engine.Register.
package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/schedule"
)

func init() {
	engine.Register("PAM", NewPrincipalAtMaturity)
	engine.Register("LAM", NewLinearAmortizer)
	engine.Register("SWAP", NewSwap)
	engine.Register("CAPFL", NewCapFloor)
	engine.Register("CEG", NewCreditEnhancement)
}

// configErr builds a terms validation error carrying the configuration
// sentinel.
func configErr(format string, args ...any) error {
	return fmt.Errorf("contracts: "+format+": %w", append(args, domain.ErrConfiguration)...)
}

// scheduleErr wraps a schedule generation failure with the schedule sentinel.
func scheduleErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrSchedule, err)
}

// interestAt returns the interest accrued up to t from the pre-event state:
// the booked accrual plus the open period's accrual on the current base.
func interestAt(st domain.ContractState, terms *domain.ContractTerms, t time.Time) float64 {
	accrued := engine.Accrue(st, terms, t)
	return accrued.AccruedInterest
}

// feesAt returns the fees accrued up to t from the pre-event state.
func feesAt(st domain.ContractState, terms *domain.ContractTerms, t time.Time) float64 {
	accrued := engine.Accrue(st, terms, t)
	return accrued.FeeAccrued
}

// settle applies the settlement-currency conversion of the POF pipeline.
func settle(ctx context.Context, amount float64, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	return engine.Settle(ctx, amount, st, terms, t, rf)
}

// cycleDates generates the dates of one cycle-driven event stream. A zero
// anchor defaults to the given fallback. Dates at or before `after` are
// dropped; `end` itself is kept or dropped via includeEnd.
func cycleDates(anchor time.Time, fallback time.Time, c *schedule.Cycle, end time.Time, eom schedule.EndOfMonthConvention, after time.Time, includeEnd bool) ([]time.Time, error) {
	if c == nil {
		return nil, nil
	}
	a := anchor
	if a.IsZero() {
		a = fallback
	}
	dates, err := schedule.Generate(a, *c, end, eom)
	if err != nil {
		return nil, scheduleErr(err)
	}
	out := dates[:0]
	for _, d := range dates {
		if !d.After(after) {
			continue
		}
		if d.Equal(end) && !includeEnd {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
