package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TermsStore persists contract terms records.
type TermsStore interface {
	Upsert(ctx context.Context, terms ContractTerms) error
	Get(ctx context.Context, contractID string) (ContractTerms, error)
	List(ctx context.Context, opts ListOpts) ([]ContractTerms, error)
	Count(ctx context.Context) (int64, error)
}

// RunStatus tracks a batch simulation run's lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SimulationRun is one batch execution over a portfolio.
type SimulationRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Contracts  int
	Failed     int
	Status     RunStatus
}

// ResultStore persists simulation runs and their derived cash flows.
type ResultStore interface {
	CreateRun(ctx context.Context, run SimulationRun) error
	FinishRun(ctx context.Context, run SimulationRun) error
	InsertCashflows(ctx context.Context, runID, contractID string, flows []Cashflow) error
	ListCashflows(ctx context.Context, runID, contractID string) ([]Cashflow, error)
	LastRun(ctx context.Context) (SimulationRun, error)
}
