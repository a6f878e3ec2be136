package contracts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/schedule"
)

// CapFloor pays the rate differential of an underlying floating-rate
// contract: the excess over the cap plus the shortfall under the floor, on
// the underlier's notional per interest period. Its own payoff and
// transition tables are identity no-ops; every event is precomputed from the
// underlier's observations.
type CapFloor struct{}

// NewCapFloor validates the structure reference and the cap/floor bounds.
func NewCapFloor(terms *domain.ContractTerms) (engine.ContractType, error) {
	if len(terms.References(domain.RefUnderlier)) != 1 {
		return nil, configErr("CAPFL %s: structure must reference exactly one underlier", terms.ContractID)
	}
	if terms.LifeCap == nil && terms.LifeFloor == nil {
		return nil, configErr("CAPFL %s: at least one of cap and floor must be set", terms.ContractID)
	}
	if terms.LifeCap != nil && terms.LifeFloor != nil && *terms.LifeFloor > *terms.LifeCap {
		return nil, configErr("CAPFL %s: floor %v above cap %v", terms.ContractID, *terms.LifeFloor, *terms.LifeCap)
	}
	return CapFloor{}, nil
}

// InitialState carries only bookkeeping fields.
func (CapFloor) InitialState(terms *domain.ContractTerms) (domain.ContractState, error) {
	return Swap{}.InitialState(terms)
}

// Schedule is unused; events derive from the underlier via Compose.
func (CapFloor) Schedule(*domain.ContractTerms, time.Time) ([]domain.ContractEvent, error) {
	return nil, nil
}

// Compose walks the underlier's interest payment periods. The rate observed
// during each period is the underlier's nominal rate as of just before the
// interest payment, i.e. the level fixed by the period's rate reset.
func (CapFloor) Compose(ctx context.Context, terms *domain.ContractTerms, child domain.ChildContractObserver, horizon time.Time) ([]domain.ContractEvent, error) {
	if child == nil {
		return nil, fmt.Errorf("contracts: CAPFL %s: child contract observer required: %w", terms.ContractID, domain.ErrSimulation)
	}
	udl := terms.References(domain.RefUnderlier)[0].ReferenceID

	dc, err := childDayCount(ctx, child, udl)
	if err != nil {
		return nil, fmt.Errorf("contracts: CAPFL %s: %w", terms.ContractID, err)
	}
	periodStart, err := childTime(ctx, child, udl, "initialExchangeDate")
	if err != nil {
		return nil, fmt.Errorf("contracts: CAPFL %s: %w", terms.ContractID, err)
	}

	// The full underlier history, not just the slice after this contract's
	// status date: periods settled before the status date still bound the
	// year fraction of the first period this contract participates in.
	events, err := child.Events(ctx, udl, periodStart)
	if err != nil {
		return nil, fmt.Errorf("contracts: CAPFL %s: underlier %s events: %w", terms.ContractID, udl, err)
	}

	sign := terms.ContractRole.Sign()
	var out []domain.ContractEvent
	for _, e := range events {
		if e.Type != domain.EventIP {
			continue
		}
		if e.Time.After(horizon) {
			break
		}
		periodEnd := e.CalculationTime()
		if e.Time.Before(terms.StatusDate) {
			periodStart = periodEnd
			continue
		}
		rate := e.PreState.NominalInterestRate
		notional := e.PreState.NotionalPrincipal
		yf := schedule.YearFraction(dc, periodStart, periodEnd, e.PreState.MaturityDate, nil)

		var diff float64
		if terms.LifeCap != nil {
			diff += math.Max(0, rate-*terms.LifeCap)
		}
		if terms.LifeFloor != nil {
			diff += math.Max(0, *terms.LifeFloor-rate)
		}

		ev := domain.NewEvent(domain.EventIP, e.Time, e.CalcTime, terms.Currency)
		ev.Payoff = sign * diff * notional * yf
		out = append(out, ev)

		periodStart = periodEnd
	}

	return out, nil
}

// Payoffs is empty: composed payoffs pass through unchanged.
func (CapFloor) Payoffs() map[domain.EventType]engine.PayoffFunc { return nil }

// Transitions is empty: identity no-ops.
func (CapFloor) Transitions() map[domain.EventType]engine.TransitionFunc { return nil }

func childDayCount(ctx context.Context, child domain.ChildContractObserver, id string) (schedule.DayCount, error) {
	v, err := child.Attribute(ctx, id, "dayCountConvention")
	if err != nil {
		return "", err
	}
	switch dc := v.(type) {
	case schedule.DayCount:
		return dc, nil
	case string:
		return schedule.ParseDayCount(dc)
	default:
		return "", fmt.Errorf("underlier day count has unexpected type %T", v)
	}
}

func childTime(ctx context.Context, child domain.ChildContractObserver, id, name string) (time.Time, error) {
	v, err := child.Attribute(ctx, id, name)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("underlier attribute %s has unexpected type %T", name, v)
	}
	return t, nil
}
