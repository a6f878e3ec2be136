package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/schedule"
)

// PrincipalAtMaturity is the bullet instrument: the full principal is
// exchanged at the initial exchange date, interest is paid periodically on
// the outstanding notional, and the principal returns in one piece at
// maturity.
type PrincipalAtMaturity struct{}

// NewPrincipalAtMaturity validates the PAM-relevant terms.
func NewPrincipalAtMaturity(terms *domain.ContractTerms) (engine.ContractType, error) {
	if terms.Currency == "" {
		return nil, configErr("PAM %s: missing currency", terms.ContractID)
	}
	if terms.InitialExchangeDate.IsZero() {
		return nil, configErr("PAM %s: missing initial exchange date", terms.ContractID)
	}
	if terms.NotionalPrincipal <= 0 {
		return nil, configErr("PAM %s: notional must be positive, got %v", terms.ContractID, terms.NotionalPrincipal)
	}
	if terms.DayCount == "" {
		return nil, configErr("PAM %s: missing day count convention", terms.ContractID)
	}
	if terms.CycleOfRateReset != nil && terms.MarketObjectCodeOfRateReset == "" {
		return nil, configErr("PAM %s: rate reset cycle without market object code", terms.ContractID)
	}
	if terms.CycleOfOptionality != nil && terms.ObjectCodeOfPrepaymentModel == "" {
		return nil, configErr("PAM %s: optionality cycle without prepayment model code", terms.ContractID)
	}
	if terms.PenaltyType == domain.PenaltyInterestDifferential && terms.MarketObjectCodeOfRateReset == "" {
		return nil, configErr("PAM %s: interest differential penalty without rate market object code", terms.ContractID)
	}
	if scalesNotional(terms) || scalesInterest(terms) {
		if terms.MarketObjectCodeOfScalingIndex == "" {
			return nil, configErr("PAM %s: scaling effect without scaling index code", terms.ContractID)
		}
		if terms.ScalingIndexAtStatusDate <= 0 {
			return nil, configErr("PAM %s: scaling effect without base index level", terms.ContractID)
		}
	}
	return PrincipalAtMaturity{}, nil
}

func scalesNotional(terms *domain.ContractTerms) bool {
	return strings.ContainsRune(terms.ScalingEffect, 'N')
}

func scalesInterest(terms *domain.ContractTerms) bool {
	return strings.ContainsRune(terms.ScalingEffect, 'I')
}

func penalizes(terms *domain.ContractTerms) bool {
	return terms.PenaltyType != "" && terms.PenaltyType != domain.PenaltyNone
}

// InitialState derives the state at the status date. When the initial
// exchange already happened the notional and rate are live and any unbooked
// accrual since the last interest payment date is reconstructed; otherwise
// the state stays empty until the IED transition fires.
func (PrincipalAtMaturity) InitialState(terms *domain.ContractTerms) (domain.ContractState, error) {
	st := domain.ContractState{
		StatusDate:                terms.StatusDate,
		MaturityDate:              terms.MaturityDate,
		NotionalScalingMultiplier: 1,
		InterestScalingMultiplier: 1,
		Performance:               domain.PerformancePerforming,
	}

	if terms.InitialExchangeDate.After(terms.StatusDate) {
		return st, nil
	}

	st.NotionalPrincipal = terms.NotionalPrincipal
	st.NominalInterestRate = terms.NominalInterestRate
	st.FeeAccrued = terms.FeeAccrued

	if terms.AccruedInterest != 0 {
		st.AccruedInterest = terms.AccruedInterest
		return st, nil
	}

	// Reconstruct the open period's accrual from the last interest payment
	// date at or before the status date.
	last := terms.InitialExchangeDate
	if terms.CycleOfInterestPayment != nil {
		dates, err := cycleDates(
			terms.CycleAnchorOfInterestPayment, terms.InitialExchangeDate,
			terms.CycleOfInterestPayment, terms.StatusDate,
			terms.EndOfMonthConvention, terms.InitialExchangeDate, true,
		)
		if err != nil {
			return domain.ContractState{}, err
		}
		// A date equal to the status date is still a pending event, not a
		// completed payment.
		for _, d := range dates {
			if d.Before(terms.StatusDate) && d.After(last) {
				last = d
			}
		}
	}
	pseudo := st.WithStatusDate(last)
	st.AccruedInterest = interestAt(pseudo, terms, terms.StatusDate)

	return st, nil
}

// Schedule generates the raw (unadjusted) event stream up to maturity or the
// fallback horizon. The engine overlays business-day adjustment, status-date
// suppression, purchase, and termination policies.
func (PrincipalAtMaturity) Schedule(terms *domain.ContractTerms, horizon time.Time) ([]domain.ContractEvent, error) {
	maturity := terms.MaturityDate
	if maturity.IsZero() {
		maturity = horizon
	}
	ied := terms.InitialExchangeDate
	cur := engine.SettlementCurrency(terms)
	eom := terms.EndOfMonthConvention

	var events []domain.ContractEvent
	add := func(et domain.EventType, t time.Time) {
		events = append(events, domain.NewEvent(et, t, time.Time{}, cur))
	}

	add(domain.EventIED, ied)

	// Interest payments; dates inside the capitalization window become
	// capitalization events instead of cash interest.
	ipDates, err := cycleDates(terms.CycleAnchorOfInterestPayment, ied,
		terms.CycleOfInterestPayment, maturity, eom, ied, true)
	if err != nil {
		return nil, err
	}
	for _, d := range ipDates {
		if !terms.CapitalizationEndDate.IsZero() && !d.After(terms.CapitalizationEndDate) {
			add(domain.EventIPCI, d)
		} else {
			add(domain.EventIP, d)
		}
	}

	// Rate resets. The first reset becomes a fixed reset when the next rate
	// is already known.
	if terms.CycleOfRateReset != nil {
		anchor := terms.CycleAnchorOfRateReset
		if anchor.IsZero() {
			anchor = terms.CycleOfRateReset.AddTo(ied, 1)
		}
		rrDates, err := cycleDates(anchor, anchor, terms.CycleOfRateReset, maturity, eom, ied, false)
		if err != nil {
			return nil, err
		}
		for i, d := range rrDates {
			if i == 0 && terms.NextResetRate != nil {
				add(domain.EventRRF, d)
			} else {
				add(domain.EventRR, d)
			}
		}
	}

	// Fees.
	if terms.FeeRate != 0 && terms.CycleOfFee != nil {
		fpDates, err := cycleDates(terms.CycleAnchorOfFee, ied,
			terms.CycleOfFee, maturity, eom, ied, true)
		if err != nil {
			return nil, err
		}
		for _, d := range fpDates {
			add(domain.EventFP, d)
		}
	}

	// Prepayments; each one drags a penalty event when a penalty is
	// configured.
	if terms.CycleOfOptionality != nil {
		anchor := terms.CycleAnchorOfOptionality
		if anchor.IsZero() {
			anchor = terms.CycleOfOptionality.AddTo(ied, 1)
		}
		ppDates, err := cycleDates(anchor, anchor, terms.CycleOfOptionality, maturity, eom, ied, false)
		if err != nil {
			return nil, err
		}
		for _, d := range ppDates {
			add(domain.EventPP, d)
			if penalizes(terms) {
				add(domain.EventPY, d)
			}
		}
	}

	// Scaling index revisions.
	if scalesNotional(terms) || scalesInterest(terms) {
		anchor := terms.CycleAnchorOfScalingIndex
		if anchor.IsZero() {
			anchor = ied
		}
		scDates, err := cycleDates(anchor, anchor, terms.CycleOfScalingIndex, maturity, eom, ied, false)
		if err != nil {
			return nil, err
		}
		for _, d := range scDates {
			add(domain.EventSC, d)
		}
	}

	add(domain.EventMD, maturity)

	return events, nil
}

// Payoffs returns the static event-type to payoff table.
func (PrincipalAtMaturity) Payoffs() map[domain.EventType]engine.PayoffFunc {
	return pamPayoffs
}

// Transitions returns the static event-type to transition table.
func (PrincipalAtMaturity) Transitions() map[domain.EventType]engine.TransitionFunc {
	return pamTransitions
}

// payoffZero is the no-cash payoff shared by bookkeeping events.
func payoffZero(context.Context, domain.EventType, domain.ContractState, *domain.ContractTerms, time.Time, domain.RiskFactorObserver) (float64, error) {
	return 0, nil
}

var pamPayoffs = map[domain.EventType]engine.PayoffFunc{
	domain.EventIED: pamPayoffIED,
	domain.EventIP:  pamPayoffIP,
	domain.EventFP:  pamPayoffFP,
	domain.EventPP:  pamPayoffPP,
	domain.EventPY:  pamPayoffPY,
	domain.EventPRD: pamPayoffPRD,
	domain.EventTD:  pamPayoffTD,
	domain.EventMD:  pamPayoffMD,

	domain.EventIPCI: payoffZero,
	domain.EventRR:   payoffZero,
	domain.EventRRF:  payoffZero,
	domain.EventSC:   payoffZero,
	domain.EventCE:   payoffZero,
	domain.EventAD:   payoffZero,
}

var pamTransitions = map[domain.EventType]engine.TransitionFunc{
	domain.EventIED:  pamTransitionIED,
	domain.EventIP:   pamTransitionIP,
	domain.EventIPCI: pamTransitionIPCI,
	domain.EventFP:   pamTransitionFP,
	domain.EventRR:   pamTransitionRR,
	domain.EventRRF:  pamTransitionRRF,
	domain.EventSC:   pamTransitionSC,
	domain.EventPP:   pamTransitionPP,
	domain.EventPY:   pamTransitionAccrueOnly,
	domain.EventPRD:  pamTransitionAccrueOnly,
	domain.EventAD:   pamTransitionAccrueOnly,
	domain.EventCE:   pamTransitionCE,
	domain.EventTD:   pamTransitionTD,
	domain.EventMD:   pamTransitionMD,
}

// The initial exchange disburses the principal: negative for the receiving
// role, which pays the notional out and collects interest later.
func pamPayoffIED(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	raw := -terms.ContractRole.Sign() * terms.NotionalPrincipal
	return settle(ctx, raw, st, terms, t, rf)
}

// Interest payments reference the accrual and notional of the pre-event
// state.
func pamPayoffIP(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	raw := terms.ContractRole.Sign() * st.InterestScalingMultiplier * interestAt(st, terms, t)
	return settle(ctx, raw, st, terms, t, rf)
}

func pamPayoffFP(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	var raw float64
	if terms.FeeBasis == domain.FeeBasisAbsolute {
		raw = terms.ContractRole.Sign() * terms.FeeRate
	} else {
		raw = terms.ContractRole.Sign() * feesAt(st, terms, t)
	}
	return settle(ctx, raw, st, terms, t, rf)
}

// A prepayment pays the observed fraction of the outstanding notional.
func pamPayoffPP(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	frac, err := rf.Observe(ctx, terms.ObjectCodeOfPrepaymentModel, t, &st, terms)
	if err != nil {
		return 0, fmt.Errorf("observe prepayment model %s: %w", terms.ObjectCodeOfPrepaymentModel, err)
	}
	raw := terms.ContractRole.Sign() * frac * st.NotionalPrincipal
	return settle(ctx, raw, st, terms, t, rf)
}

func pamPayoffPY(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	sign := terms.ContractRole.Sign()
	switch terms.PenaltyType {
	case domain.PenaltyAbsolute:
		return settle(ctx, sign*terms.PenaltyRate, st, terms, t, rf)
	case domain.PenaltyRelative:
		yf := schedule.YearFraction(terms.DayCount, st.StatusDate, t, st.MaturityDate, terms.Calendar())
		return settle(ctx, sign*yf*terms.PenaltyRate*st.NotionalPrincipal, st, terms, t, rf)
	case domain.PenaltyInterestDifferential:
		observed, err := rf.Observe(ctx, terms.MarketObjectCodeOfRateReset, t, &st, terms)
		if err != nil {
			return 0, fmt.Errorf("observe rate %s: %w", terms.MarketObjectCodeOfRateReset, err)
		}
		diff := st.NominalInterestRate - observed
		if diff < 0 {
			diff = 0
		}
		yf := schedule.YearFraction(terms.DayCount, st.StatusDate, t, st.MaturityDate, terms.Calendar())
		return settle(ctx, sign*yf*diff*st.NotionalPrincipal, st, terms, t, rf)
	default:
		return 0, nil
	}
}

func pamPayoffPRD(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	raw := -terms.ContractRole.Sign() * (terms.PriceAtPurchase + interestAt(st, terms, t))
	return settle(ctx, raw, st, terms, t, rf)
}

func pamPayoffTD(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	raw := terms.ContractRole.Sign() * (terms.PriceAtTermination + interestAt(st, terms, t))
	return settle(ctx, raw, st, terms, t, rf)
}

// Maturity returns the scaled principal plus any final accrued interest and
// fees.
func pamPayoffMD(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	raw := terms.ContractRole.Sign() * (st.NotionalScalingMultiplier*st.NotionalPrincipal +
		st.InterestScalingMultiplier*interestAt(st, terms, t) +
		feesAt(st, terms, t))
	return settle(ctx, raw, st, terms, t, rf)
}

func pamTransitionIED(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, _ time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st.NotionalPrincipal = terms.NotionalPrincipal
	st.NominalInterestRate = terms.NominalInterestRate
	st.AccruedInterest = terms.AccruedInterest
	return st, nil
}

func pamTransitionIP(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.AccruedInterest = 0
	return st, nil
}

// Capitalization folds the accrued interest into the notional instead of
// paying it out.
func pamTransitionIPCI(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.NotionalPrincipal += st.AccruedInterest
	st.AccruedInterest = 0
	return st, nil
}

func pamTransitionFP(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.FeeAccrued = 0
	return st, nil
}

func pamTransitionRR(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	observed, err := rf.Observe(ctx, terms.MarketObjectCodeOfRateReset, t, &st, terms)
	if err != nil {
		return domain.ContractState{}, fmt.Errorf("observe rate %s: %w", terms.MarketObjectCodeOfRateReset, err)
	}
	mult := terms.RateMultiplier
	if mult == 0 {
		mult = 1
	}
	st.NominalInterestRate = engine.BoundRate(observed*mult+terms.RateSpread, terms)
	return st, nil
}

func pamTransitionRRF(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	if terms.NextResetRate != nil {
		st.NominalInterestRate = engine.BoundRate(*terms.NextResetRate, terms)
	}
	return st, nil
}

func pamTransitionSC(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	observed, err := rf.Observe(ctx, terms.MarketObjectCodeOfScalingIndex, t, &st, terms)
	if err != nil {
		return domain.ContractState{}, fmt.Errorf("observe scaling index %s: %w", terms.MarketObjectCodeOfScalingIndex, err)
	}
	m := observed / terms.ScalingIndexAtStatusDate
	if scalesNotional(terms) {
		st.NotionalScalingMultiplier = m
	}
	if scalesInterest(terms) {
		st.InterestScalingMultiplier = m
	}
	return st, nil
}

// The prepayment transition re-observes the prepaid fraction and reduces the
// notional by it.
func pamTransitionPP(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	frac, err := rf.Observe(ctx, terms.ObjectCodeOfPrepaymentModel, t, &st, terms)
	if err != nil {
		return domain.ContractState{}, fmt.Errorf("observe prepayment model %s: %w", terms.ObjectCodeOfPrepaymentModel, err)
	}
	st.NotionalPrincipal -= frac * st.NotionalPrincipal
	return st, nil
}

func pamTransitionAccrueOnly(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	return engine.Accrue(st, terms, t), nil
}

// A credit event moves the contract into default. CE events are not
// scheduled by the type itself; they arrive through merged external
// schedules.
func pamTransitionCE(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.Performance = domain.PerformanceDefault
	return st, nil
}

func pamTransitionTD(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.NotionalPrincipal = 0
	st.NominalInterestRate = 0
	st.AccruedInterest = 0
	st.FeeAccrued = 0
	st.Performance = domain.PerformanceTerminated
	return st, nil
}

func pamTransitionMD(_ context.Context, _ domain.EventType, st domain.ContractState, _ *domain.ContractTerms, _ time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st.NotionalPrincipal = 0
	st.NominalInterestRate = 0
	st.AccruedInterest = 0
	st.FeeAccrued = 0
	st.Performance = domain.PerformanceMatured
	return st, nil
}
