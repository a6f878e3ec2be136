package domain

import "time"

// Cashflow is one dated signed amount in a currency, derived from a contract
// event. Present-value discounting of these rows is a downstream concern.
type Cashflow struct {
	Time     time.Time `json:"time"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Event    EventType `json:"event"`
}

// CashflowsFromEvents projects an event history onto its non-zero cash flows.
func CashflowsFromEvents(events []ContractEvent) []Cashflow {
	var out []Cashflow
	for _, e := range events {
		if e.Payoff == 0 {
			continue
		}
		out = append(out, Cashflow{
			Time:     e.Time,
			Amount:   e.Payoff,
			Currency: e.Currency,
			Event:    e.Type,
		})
	}
	return out
}
