package engine

import "github.com/quantfossa/flowsim/internal/domain"

// Result is a completed simulation: the full ordered event history, the
// initial state, and the terminal state.
type Result struct {
	ContractID   string
	InitialState domain.ContractState
	FinalState   domain.ContractState
	Events       []domain.ContractEvent
}

// States returns the per-event post-states in event order.
func (r *Result) States() []domain.ContractState {
	out := make([]domain.ContractState, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.PostState
	}
	return out
}

// Cashflows projects the event history onto its dated signed cash amounts.
func (r *Result) Cashflows() []domain.Cashflow {
	return domain.CashflowsFromEvents(r.Events)
}

// Schedule returns the history as an event schedule.
func (r *Result) Schedule() domain.EventSchedule {
	return domain.NewEventSchedule(r.ContractID, r.Events)
}
