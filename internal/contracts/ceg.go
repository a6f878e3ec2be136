package contracts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
)

// CreditEnhancement is a guarantee over one or more covered contracts. Its
// notional state tracks the covered exposure, capped by the available
// collateral of the covering contracts and by the coverage ratio. Monitoring
// events revalue the coverage at every cash event date of the covered
// contracts; no cash flows of its own are generated.
type CreditEnhancement struct{}

// NewCreditEnhancement validates the structure reference and coverage terms.
func NewCreditEnhancement(terms *domain.ContractTerms) (engine.ContractType, error) {
	if len(terms.References(domain.RefCovered)) == 0 {
		return nil, configErr("CEG %s: structure must reference at least one covered contract", terms.ContractID)
	}
	if terms.CoverageOfCreditEnhancement < 0 {
		return nil, configErr("CEG %s: coverage ratio must not be negative, got %v", terms.ContractID, terms.CoverageOfCreditEnhancement)
	}
	switch terms.GuaranteedExposure {
	case "", domain.ExposureNotional, domain.ExposureNotionalInterest, domain.ExposureMarketValue:
	default:
		return nil, configErr("CEG %s: unknown guaranteed exposure %q", terms.ContractID, terms.GuaranteedExposure)
	}
	return CreditEnhancement{}, nil
}

// InitialState starts the notional at the guarantee limit; the first
// monitoring event re-caps it against the actual exposure.
func (CreditEnhancement) InitialState(terms *domain.ContractTerms) (domain.ContractState, error) {
	return domain.ContractState{
		StatusDate:                terms.StatusDate,
		MaturityDate:              terms.MaturityDate,
		NotionalPrincipal:         terms.NotionalPrincipal,
		NotionalScalingMultiplier: 1,
		InterestScalingMultiplier: 1,
		Performance:               domain.PerformancePerforming,
	}, nil
}

// Schedule is unused; monitoring dates derive from the covered contracts.
func (CreditEnhancement) Schedule(*domain.ContractTerms, time.Time) ([]domain.ContractEvent, error) {
	return nil, nil
}

// Compose places a zero-payoff monitoring event at every cash event date of
// the covered contracts, plus the guarantee's own maturity.
func (CreditEnhancement) Compose(ctx context.Context, terms *domain.ContractTerms, child domain.ChildContractObserver, horizon time.Time) ([]domain.ContractEvent, error) {
	if child == nil {
		return nil, fmt.Errorf("contracts: CEG %s: child contract observer required: %w", terms.ContractID, domain.ErrSimulation)
	}

	cur := engine.SettlementCurrency(terms)
	seen := make(map[int64]struct{})
	var out []domain.ContractEvent

	for _, ref := range terms.References(domain.RefCovered) {
		events, err := child.Events(ctx, ref.ReferenceID, terms.StatusDate)
		if err != nil {
			return nil, fmt.Errorf("contracts: CEG %s: covered %s events: %w", terms.ContractID, ref.ReferenceID, err)
		}
		for _, e := range events {
			switch e.Type {
			case domain.EventIED, domain.EventIP, domain.EventPR, domain.EventMD:
			default:
				continue
			}
			if e.Time.After(horizon) {
				continue
			}
			if _, dup := seen[e.Time.Unix()]; dup {
				continue
			}
			seen[e.Time.Unix()] = struct{}{}
			out = append(out, domain.NewEvent(domain.EventAD, e.Time, time.Time{}, cur))
		}
	}

	if !terms.MaturityDate.IsZero() {
		out = append(out, domain.NewEvent(domain.EventMD, terms.MaturityDate, time.Time{}, cur))
	}

	return out, nil
}

// Payoffs is empty: the guarantee itself pays nothing while the covered
// contracts perform.
func (CreditEnhancement) Payoffs() map[domain.EventType]engine.PayoffFunc { return nil }

// Transitions is empty; coverage revaluation needs child access and runs
// through ComposeTransition.
func (CreditEnhancement) Transitions() map[domain.EventType]engine.TransitionFunc { return nil }

// ComposeTransition re-caps the guarantee notional at monitoring events:
// min(collateral, coverage ratio × exposure) under the configured exposure
// extent.
func (CreditEnhancement) ComposeTransition(ctx context.Context, et domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver, child domain.ChildContractObserver) (domain.ContractState, error) {
	switch et {
	case domain.EventAD:
		capped, err := coverageNotional(ctx, terms, t, rf, child)
		if err != nil {
			return domain.ContractState{}, err
		}
		st.NotionalPrincipal = capped
		return st, nil

	case domain.EventMD:
		st.NotionalPrincipal = 0
		st.Performance = domain.PerformanceMatured
		return st, nil

	default:
		return st, nil
	}
}

func coverageNotional(ctx context.Context, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver, child domain.ChildContractObserver) (float64, error) {
	if child == nil {
		return 0, fmt.Errorf("contracts: CEG %s: child contract observer required: %w", terms.ContractID, domain.ErrSimulation)
	}

	var exposure float64
	for _, ref := range terms.References(domain.RefCovered) {
		e, err := coveredExposure(ctx, terms, ref.ReferenceID, t, rf, child)
		if err != nil {
			return 0, err
		}
		exposure += e
	}

	// Without covering children the guarantee's own notional is the
	// collateral limit.
	collateral := terms.NotionalPrincipal
	covering := terms.References(domain.RefCovering)
	if len(covering) > 0 {
		collateral = 0
		for _, ref := range covering {
			cst, err := child.StateAt(ctx, ref.ReferenceID, t)
			if err != nil {
				return 0, fmt.Errorf("contracts: CEG %s: covering %s state: %w", terms.ContractID, ref.ReferenceID, err)
			}
			collateral += cst.NotionalPrincipal
		}
	}

	ratio := terms.CoverageOfCreditEnhancement
	if ratio == 0 {
		ratio = 1
	}
	return math.Min(collateral, ratio*exposure), nil
}

func coveredExposure(ctx context.Context, terms *domain.ContractTerms, id string, t time.Time, rf domain.RiskFactorObserver, child domain.ChildContractObserver) (float64, error) {
	switch terms.GuaranteedExposure {
	case domain.ExposureMarketValue:
		v, err := child.Attribute(ctx, id, "marketObjectCode")
		if err != nil {
			return 0, fmt.Errorf("contracts: CEG %s: covered %s market object: %w", terms.ContractID, id, err)
		}
		code, ok := v.(string)
		if !ok || code == "" {
			return 0, fmt.Errorf("contracts: CEG %s: covered %s has no market object code: %w", terms.ContractID, id, domain.ErrConfiguration)
		}
		mv, err := rf.Observe(ctx, code, t, nil, terms)
		if err != nil {
			return 0, fmt.Errorf("contracts: CEG %s: observe %s: %w", terms.ContractID, code, err)
		}
		return mv, nil

	case domain.ExposureNotionalInterest:
		cst, err := child.StateAt(ctx, id, t)
		if err != nil {
			return 0, fmt.Errorf("contracts: CEG %s: covered %s state: %w", terms.ContractID, id, err)
		}
		return cst.NotionalPrincipal + cst.AccruedInterest, nil

	default: // notional only
		cst, err := child.StateAt(ctx, id, t)
		if err != nil {
			return 0, fmt.Errorf("contracts: CEG %s: covered %s state: %w", terms.ContractID, id, err)
		}
		return cst.NotionalPrincipal, nil
	}
}
