package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
)

// Swap is a two-leg composite. It emits no cash-generating logic of its own:
// the legs are simulated independently and the swap aggregates their events,
// netting congruent flows when settling net.
type Swap struct{}

// NewSwap validates the structure reference of a swap.
func NewSwap(terms *domain.ContractTerms) (engine.ContractType, error) {
	if len(terms.References(domain.RefFirstLeg)) != 1 || len(terms.References(domain.RefSecondLeg)) != 1 {
		return nil, configErr("SWAP %s: structure must reference exactly one first and one second leg", terms.ContractID)
	}
	return Swap{}, nil
}

// InitialState of the composite carries only bookkeeping fields; all
// economic state lives in the legs.
func (Swap) InitialState(terms *domain.ContractTerms) (domain.ContractState, error) {
	return domain.ContractState{
		StatusDate:                terms.StatusDate,
		NotionalScalingMultiplier: 1,
		InterestScalingMultiplier: 1,
		Performance:               domain.PerformancePerforming,
	}, nil
}

// Schedule is unused; the swap's events derive from its legs via Compose.
func (Swap) Schedule(*domain.ContractTerms, time.Time) ([]domain.ContractEvent, error) {
	return nil, nil
}

// Compose aggregates the legs' events. Net settlement merges congruent
// events (identical time, type, currency) into single net flows; gross
// settlement concatenates them unmodified.
func (Swap) Compose(ctx context.Context, terms *domain.ContractTerms, child domain.ChildContractObserver, horizon time.Time) ([]domain.ContractEvent, error) {
	if child == nil {
		return nil, fmt.Errorf("contracts: SWAP %s: child contract observer required: %w", terms.ContractID, domain.ErrSimulation)
	}

	legs := []domain.ContractReference{
		terms.References(domain.RefFirstLeg)[0],
		terms.References(domain.RefSecondLeg)[0],
	}

	var all []domain.ContractEvent
	for _, leg := range legs {
		events, err := child.Events(ctx, leg.ReferenceID, terms.StatusDate)
		if err != nil {
			return nil, fmt.Errorf("contracts: SWAP %s: leg %s events: %w", terms.ContractID, leg.ReferenceID, err)
		}
		for _, e := range events {
			if e.Time.After(horizon) {
				continue
			}
			all = append(all, e)
		}
	}

	if terms.DeliverySettlement == domain.SettlementNet {
		return netCongruent(all)
	}
	domain.SortEvents(all)
	return all, nil
}

// Payoffs is empty: leg payoffs pass through the engine untouched.
func (Swap) Payoffs() map[domain.EventType]engine.PayoffFunc { return nil }

// Transitions is empty: the engine's identity transition advances the
// composite's status date.
func (Swap) Transitions() map[domain.EventType]engine.TransitionFunc { return nil }

type congruenceKey struct {
	unix     int64
	et       domain.EventType
	currency string
}

// netCongruent folds events sharing (time, type, currency) into single net
// events, preserving first-occurrence order before the final sort.
func netCongruent(events []domain.ContractEvent) ([]domain.ContractEvent, error) {
	index := make(map[congruenceKey]int)
	var out []domain.ContractEvent
	for _, e := range events {
		key := congruenceKey{unix: e.Time.Unix(), et: e.Type, currency: e.Currency}
		if i, ok := index[key]; ok {
			merged, err := domain.MergeCongruent(out[i], e)
			if err != nil {
				return nil, err
			}
			out[i] = merged
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	domain.SortEvents(out)
	return out, nil
}
