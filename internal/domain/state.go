package domain

import "time"

// ContractPerformance tracks whether a contract is servicing its obligations.
type ContractPerformance string

const (
	PerformancePerforming ContractPerformance = "PF"
	PerformanceDelayed    ContractPerformance = "DL"
	PerformanceDelinquent ContractPerformance = "DQ"
	PerformanceDefault    ContractPerformance = "DF"
	PerformanceMatured    ContractPerformance = "MA"
	PerformanceTerminated ContractPerformance = "TE"
)

// ContractState is the state of a contract at a point in time. States are
// value types: every transition produces a new state, never mutates one in
// place. StatusDate is monotonically non-decreasing across a history, and the
// scaling multipliers are strictly positive.
//
// All monetary state variables are stored unsigned (magnitudes); the contract
// role's sign convention is applied by the payoff functions. The exception is
// ExerciseAmount, which is captured already signed at exercise time.
type ContractState struct {
	StatusDate   time.Time
	MaturityDate time.Time

	NotionalPrincipal   float64
	NominalInterestRate float64
	AccruedInterest     float64
	FeeAccrued          float64

	NotionalScalingMultiplier float64
	InterestScalingMultiplier float64

	Performance ContractPerformance

	// ExerciseAmount is the signed settlement amount fixed at an exercise
	// event, paid at the following settlement event.
	ExerciseAmount float64
	ExerciseDate   time.Time

	// InterestCalculationBaseAmount is the accrual base for contract types
	// that decouple it from the outstanding notional.
	InterestCalculationBaseAmount float64
}

// WithStatusDate returns a copy of the state advanced to the given status
// date.
func (s ContractState) WithStatusDate(t time.Time) ContractState {
	s.StatusDate = t
	return s
}
