package contracts

import (
	"context"
	"math"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/schedule"
)

// LinearAmortizer redeems the principal in equal installments over a
// redemption cycle, with interest paid on the declining balance. The accrual
// base can be decoupled from the outstanding notional through the interest
// calculation base terms.
type LinearAmortizer struct {
	prnxt    float64
	maturity time.Time
}

// NewLinearAmortizer validates the LAM-relevant terms and derives the
// redemption installment and maturity date when only one of them is given.
func NewLinearAmortizer(terms *domain.ContractTerms) (engine.ContractType, error) {
	if terms.Currency == "" {
		return nil, configErr("LAM %s: missing currency", terms.ContractID)
	}
	if terms.InitialExchangeDate.IsZero() {
		return nil, configErr("LAM %s: missing initial exchange date", terms.ContractID)
	}
	if terms.NotionalPrincipal <= 0 {
		return nil, configErr("LAM %s: notional must be positive, got %v", terms.ContractID, terms.NotionalPrincipal)
	}
	if terms.DayCount == "" {
		return nil, configErr("LAM %s: missing day count convention", terms.ContractID)
	}
	if terms.CycleOfPrincipalRedemption == nil {
		return nil, configErr("LAM %s: missing principal redemption cycle", terms.ContractID)
	}
	if terms.CycleOfRateReset != nil && terms.MarketObjectCodeOfRateReset == "" {
		return nil, configErr("LAM %s: rate reset cycle without market object code", terms.ContractID)
	}
	if terms.InterestCalculationBase == domain.CalcBaseNotionalLagged && terms.InterestCalculationBaseAmount <= 0 {
		return nil, configErr("LAM %s: lagged interest calculation base without base amount", terms.ContractID)
	}

	prCycle := *terms.CycleOfPrincipalRedemption
	anchor := terms.CycleAnchorOfPrincipalRedemption
	if anchor.IsZero() {
		anchor = prCycle.AddTo(terms.InitialExchangeDate, 1)
	}

	lam := LinearAmortizer{prnxt: terms.NextPrincipalRedemptionPayment, maturity: terms.MaturityDate}

	switch {
	case lam.maturity.IsZero() && lam.prnxt <= 0:
		return nil, configErr("LAM %s: neither maturity date nor redemption installment given", terms.ContractID)

	case lam.maturity.IsZero():
		// Derive maturity from the installment count.
		periods := int(math.Ceil(terms.NotionalPrincipal / lam.prnxt))
		if periods < 1 {
			periods = 1
		}
		lam.maturity = prCycle.AddTo(anchor, periods-1)

	case lam.prnxt <= 0:
		// Derive the installment from the redemption date count. The final
		// installment is paid at maturity itself.
		dates, err := schedule.Generate(anchor, prCycle, lam.maturity, terms.EndOfMonthConvention)
		if err != nil {
			return nil, scheduleErr(err)
		}
		n := 0
		for _, d := range dates {
			if d.After(terms.InitialExchangeDate) {
				n++
			}
		}
		if n == 0 {
			return nil, configErr("LAM %s: redemption cycle produces no dates before maturity", terms.ContractID)
		}
		lam.prnxt = terms.NotionalPrincipal / float64(n)
	}

	return lam, nil
}

// InitialState mirrors the bullet construction and adds the interest
// calculation base extension.
func (l LinearAmortizer) InitialState(terms *domain.ContractTerms) (domain.ContractState, error) {
	st, err := PrincipalAtMaturity{}.InitialState(terms)
	if err != nil {
		return domain.ContractState{}, err
	}
	st.MaturityDate = l.maturity

	if !terms.InitialExchangeDate.After(terms.StatusDate) {
		st.InterestCalculationBaseAmount = l.initialBase(terms)
	}
	return st, nil
}

func (l LinearAmortizer) initialBase(terms *domain.ContractTerms) float64 {
	switch terms.InterestCalculationBase {
	case domain.CalcBaseNotionalAtInitialExchange:
		return terms.NotionalPrincipal
	case domain.CalcBaseNotionalLagged:
		return terms.InterestCalculationBaseAmount
	default:
		return 0 // accrue on the outstanding notional
	}
}

// Schedule extends the bullet schedule with principal redemptions and,
// for the lagged base, base-fixing events.
func (l LinearAmortizer) Schedule(terms *domain.ContractTerms, _ time.Time) ([]domain.ContractEvent, error) {
	base := PrincipalAtMaturity{}
	pamTerms := *terms
	pamTerms.MaturityDate = l.maturity
	events, err := base.Schedule(&pamTerms, l.maturity)
	if err != nil {
		return nil, err
	}

	cur := engine.SettlementCurrency(terms)
	ied := terms.InitialExchangeDate
	eom := terms.EndOfMonthConvention

	prAnchor := terms.CycleAnchorOfPrincipalRedemption
	if prAnchor.IsZero() {
		prAnchor = terms.CycleOfPrincipalRedemption.AddTo(ied, 1)
	}
	// The remaining balance redeems inside the maturity payoff, so the
	// redemption stream stops short of maturity.
	prDates, err := cycleDates(prAnchor, prAnchor, terms.CycleOfPrincipalRedemption, l.maturity, eom, ied, false)
	if err != nil {
		return nil, err
	}
	for _, d := range prDates {
		events = append(events, domain.NewEvent(domain.EventPR, d, time.Time{}, cur))
	}

	if terms.InterestCalculationBase == domain.CalcBaseNotionalLagged && terms.CycleOfInterestCalculationBase != nil {
		anchor := terms.CycleAnchorOfInterestCalculationBase
		if anchor.IsZero() {
			anchor = ied
		}
		icbDates, err := cycleDates(anchor, anchor, terms.CycleOfInterestCalculationBase, l.maturity, eom, ied, false)
		if err != nil {
			return nil, err
		}
		for _, d := range icbDates {
			events = append(events, domain.NewEvent(domain.EventIPCB, d, time.Time{}, cur))
		}
	}

	return events, nil
}

// Payoffs shares the bullet table and adds the redemption payoff.
func (l LinearAmortizer) Payoffs() map[domain.EventType]engine.PayoffFunc {
	table := make(map[domain.EventType]engine.PayoffFunc, len(pamPayoffs)+2)
	for et, fn := range pamPayoffs {
		table[et] = fn
	}
	table[domain.EventPR] = l.payoffPR
	table[domain.EventIPCB] = payoffZero
	return table
}

// Transitions shares the bullet table and adds redemption and base-fixing
// transitions.
func (l LinearAmortizer) Transitions() map[domain.EventType]engine.TransitionFunc {
	table := make(map[domain.EventType]engine.TransitionFunc, len(pamTransitions)+3)
	for et, fn := range pamTransitions {
		table[et] = fn
	}
	table[domain.EventIED] = l.transitionIED
	table[domain.EventPR] = l.transitionPR
	table[domain.EventIPCB] = l.transitionIPCB
	return table
}

// The redemption pays the scheduled installment, never more than the
// remaining balance, scaled by the notional multiplier.
func (l LinearAmortizer) payoffPR(ctx context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	raw := terms.ContractRole.Sign() * st.NotionalScalingMultiplier * math.Min(st.NotionalPrincipal, l.prnxt)
	return settle(ctx, raw, st, terms, t, rf)
}

func (l LinearAmortizer) transitionIED(ctx context.Context, et domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (domain.ContractState, error) {
	st, err := pamTransitionIED(ctx, et, st, terms, t, rf)
	if err != nil {
		return domain.ContractState{}, err
	}
	st.InterestCalculationBaseAmount = l.initialBase(terms)
	return st, nil
}

func (l LinearAmortizer) transitionPR(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.NotionalPrincipal -= math.Min(st.NotionalPrincipal, l.prnxt)
	return st, nil
}

// The lagged base refixes to the outstanding notional at base-fixing events.
func (l LinearAmortizer) transitionIPCB(_ context.Context, _ domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, _ domain.RiskFactorObserver) (domain.ContractState, error) {
	st = engine.Accrue(st, terms, t)
	st.InterestCalculationBaseAmount = st.NotionalPrincipal
	return st, nil
}
