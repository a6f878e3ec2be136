// Package engine implements the payoff/state-transition framework and the
// per-contract simulation state machine. Contract types plug in through a
// registry of builders; each type supplies a schedule generator, an initial
// state, and static per-event-type payoff and transition tables.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
)

// PayoffFunc computes the signed cash amount of one event from the pre-event
// state. Implementations apply the contract-role sign convention themselves,
// except where the raw amount is already a signed state variable (e.g. a
// fixed exercise amount); which amounts those are is a per-type decision.
type PayoffFunc func(ctx context.Context, et domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error)

// TransitionFunc produces the post-event state from the pre-event state. The
// engine normalizes the post-state's status date to the event time afterward.
type TransitionFunc func(ctx context.Context, et domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (domain.ContractState, error)

// Settle converts an amount from the contract currency into the settlement
// currency when a distinct settlement currency is configured, observing the
// "CUR/CUS" FX identifier. The observed rate is settlement units per one
// contract-currency unit.
func Settle(ctx context.Context, amount float64, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver) (float64, error) {
	if terms.SettlementCurrency == "" || terms.SettlementCurrency == terms.Currency {
		return amount, nil
	}
	id := domain.FXIdentifier(terms.Currency, terms.SettlementCurrency)
	rate, err := rf.Observe(ctx, id, t, &st, terms)
	if err != nil {
		return 0, fmt.Errorf("engine: observe fx %s at %s: %w", id, t.Format("2006-01-02"), err)
	}
	return amount * rate, nil
}

// SettlementCurrency returns the currency cash flows settle in.
func SettlementCurrency(terms *domain.ContractTerms) string {
	if terms.SettlementCurrency != "" {
		return terms.SettlementCurrency
	}
	return terms.Currency
}
