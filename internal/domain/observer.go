package domain

import (
	"context"
	"time"
)

// RiskFactorObserver resolves market observations: rate fixings, scaling
// indices, market values, and FX rates. FX identifiers use the "BASE/QUOTE"
// string convention. An unresolvable lookup is fatal for the requesting
// event; implementations must return an error rather than default to zero.
type RiskFactorObserver interface {
	Observe(ctx context.Context, id string, t time.Time, state *ContractState, terms *ContractTerms) (float64, error)
}

// ChildContractObserver gives a composite contract access to its child
// contracts. The parent never recomputes child payoff or state logic; it only
// aggregates what the observer exposes.
type ChildContractObserver interface {
	// Events returns the child's events from the given time onward.
	Events(ctx context.Context, id string, from time.Time) ([]ContractEvent, error)
	// StateAt returns the child's state as of the given time.
	StateAt(ctx context.Context, id string, t time.Time) (ContractState, error)
	// Attribute returns a named term of the child contract.
	Attribute(ctx context.Context, id, name string) (any, error)
}

// FXIdentifier builds the observer identifier for converting an amount from
// the contract currency into the settlement currency. The observed value is
// the number of settlement-currency units per one contract-currency unit.
func FXIdentifier(contractCurrency, settlementCurrency string) string {
	return contractCurrency + "/" + settlementCurrency
}
