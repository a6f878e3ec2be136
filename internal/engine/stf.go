package engine

import (
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/schedule"
)

// Accrue advances interest and fee accruals over the half-open interval
// [st.StatusDate, calcTime) under the contract's day-count convention. It
// does not touch the status date; transitions set that after their
// event-specific work, and the engine normalizes it to the event time.
func Accrue(st domain.ContractState, terms *domain.ContractTerms, calcTime time.Time) domain.ContractState {
	if !st.StatusDate.Before(calcTime) {
		return st
	}

	yf := schedule.YearFraction(terms.DayCount, st.StatusDate, calcTime, st.MaturityDate, terms.Calendar())

	base := st.NotionalPrincipal
	if st.InterestCalculationBaseAmount > 0 {
		base = st.InterestCalculationBaseAmount
	}
	st.AccruedInterest += yf * st.NominalInterestRate * base

	if terms.FeeRate != 0 && terms.FeeBasis == domain.FeeBasisNotional {
		st.FeeAccrued += yf * terms.FeeRate * st.NotionalPrincipal
	}

	return st
}

// BoundRate clamps a candidate rate to the contract's life cap and floor.
func BoundRate(rate float64, terms *domain.ContractTerms) float64 {
	if terms.LifeCap != nil && rate > *terms.LifeCap {
		rate = *terms.LifeCap
	}
	if terms.LifeFloor != nil && rate < *terms.LifeFloor {
		rate = *terms.LifeFloor
	}
	return rate
}
