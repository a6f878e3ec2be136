// Package portfolio runs batch simulations over a stored set of contracts.
// Contracts are simulated concurrently through a shared contract set so that
// composite contracts can reference siblings; an error in one contract is
// recorded against that contract and never blocks or corrupts the rest of
// the run.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/observer"
)

// Notification event types emitted by the runner.
const (
	EventRunCompleted   = "run_completed"
	EventContractFailed = "contract_failed"
)

const (
	runLockKey   = "flowsim:batch_run"
	runLockTTL   = time.Hour
	listPageSize = 500
)

// Notifier is the subset of the notification system the runner uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Report is the outcome of one batch run: the run record, the per-contract
// simulation results, and the per-contract failures.
type Report struct {
	Run     domain.SimulationRun
	Results map[string]*engine.Result
	Errors  map[string]error
}

// Runner executes batch simulations: it loads every stored terms record,
// simulates the portfolio with a bounded worker pool, and persists the
// resulting cash flows under a fresh run id.
type Runner struct {
	terms    domain.TermsStore
	results  domain.ResultStore
	rf       domain.RiskFactorObserver
	locks    domain.LockManager
	notifier Notifier
	workers  int
	logger   *slog.Logger

	engineOpts []engine.Option
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithLockManager makes the runner hold a distributed lock for the duration
// of each run, so overlapping batch invocations do not double-write.
func WithLockManager(lm domain.LockManager) RunnerOption {
	return func(r *Runner) { r.locks = lm }
}

// WithNotifier attaches a notification sink for run and contract events.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithEngineOptions forwards options to every contract engine the runner
// builds, e.g. the fallback horizon for open-ended contracts.
func WithEngineOptions(opts ...engine.Option) RunnerOption {
	return func(r *Runner) { r.engineOpts = append(r.engineOpts, opts...) }
}

// NewRunner creates a batch runner. workers bounds the number of contracts
// simulated concurrently; values below one fall back to serial execution.
func NewRunner(
	terms domain.TermsStore,
	results domain.ResultStore,
	rf domain.RiskFactorObserver,
	workers int,
	logger *slog.Logger,
	opts ...RunnerOption,
) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		terms:   terms,
		results: results,
		rf:      rf,
		workers: workers,
		logger:  logger.With(slog.String("component", "portfolio_runner")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one batch over every stored contract and returns the report.
// The returned error covers run-level failures (loading terms, persisting
// the run record, a canceled context); individual contract failures are
// captured in the report and reflected in the run's failed count.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, runLockKey, runLockTTL)
		if err != nil {
			return nil, fmt.Errorf("portfolio: acquire run lock: %w", err)
		}
		defer unlock()
	}

	all, err := r.loadTerms(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Run: domain.SimulationRun{
			ID:        uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Contracts: len(all),
			Status:    domain.RunStatusRunning,
		},
		Results: make(map[string]*engine.Result, len(all)),
		Errors:  make(map[string]error),
	}

	r.logger.InfoContext(ctx, "batch run starting",
		slog.String("run_id", report.Run.ID),
		slog.Int("contracts", len(all)),
		slog.Int("workers", r.workers),
	)

	if err := r.results.CreateRun(ctx, report.Run); err != nil {
		return nil, fmt.Errorf("portfolio: create run %s: %w", report.Run.ID, err)
	}

	set := observer.NewContractSet(r.rf)
	var ids []string
	var mu sync.Mutex
	for i := range all {
		rec := all[i]
		c, err := engine.New(&rec, r.engineOpts...)
		if err != nil {
			report.Errors[rec.ContractID] = err
			r.reportFailure(ctx, report.Run.ID, rec.ContractID, err)
			continue
		}
		set.Add(c)
		ids = append(ids, rec.ContractID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := r.simulateOne(gctx, set, report.Run.ID, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Run-level abort only on cancellation; anything else is
				// this contract's problem alone.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				report.Errors[id] = err
				return nil
			}
			report.Results[id] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Run.Status = domain.RunStatusFailed
		r.finishRun(ctx, report)
		return report, fmt.Errorf("portfolio: run %s aborted: %w", report.Run.ID, err)
	}

	report.Run.Status = domain.RunStatusCompleted
	r.finishRun(ctx, report)

	r.logger.InfoContext(ctx, "batch run finished",
		slog.String("run_id", report.Run.ID),
		slog.Int("contracts", report.Run.Contracts),
		slog.Int("failed", report.Run.Failed),
	)
	if r.notifier != nil {
		msg := fmt.Sprintf("run %s: %d contracts, %d failed", report.Run.ID, report.Run.Contracts, report.Run.Failed)
		if err := r.notifier.Notify(ctx, EventRunCompleted, "Simulation run completed", msg); err != nil {
			r.logger.WarnContext(ctx, "run notification failed", slog.String("error", err.Error()))
		}
	}
	return report, nil
}

// simulateOne simulates a single contract through the shared set and persists
// its cash flows.
func (r *Runner) simulateOne(ctx context.Context, set *observer.ContractSet, runID, id string) (*engine.Result, error) {
	res, err := set.Simulate(ctx, id)
	if err != nil {
		r.reportFailure(ctx, runID, id, err)
		return nil, err
	}
	if err := r.results.InsertCashflows(ctx, runID, id, res.Cashflows()); err != nil {
		err = fmt.Errorf("persist cashflows: %w", err)
		r.reportFailure(ctx, runID, id, err)
		return nil, err
	}
	return res, nil
}

func (r *Runner) reportFailure(ctx context.Context, runID, id string, err error) {
	r.logger.ErrorContext(ctx, "contract simulation failed",
		slog.String("run_id", runID),
		slog.String("contract_id", id),
		slog.String("error", err.Error()),
	)
	if r.notifier != nil {
		msg := fmt.Sprintf("run %s, contract %s: %v", runID, id, err)
		if nerr := r.notifier.Notify(ctx, EventContractFailed, "Contract simulation failed", msg); nerr != nil {
			r.logger.WarnContext(ctx, "failure notification failed", slog.String("error", nerr.Error()))
		}
	}
}

func (r *Runner) finishRun(ctx context.Context, report *Report) {
	now := time.Now().UTC()
	report.Run.FinishedAt = &now
	report.Run.Failed = len(report.Errors)
	if err := r.results.FinishRun(ctx, report.Run); err != nil {
		r.logger.ErrorContext(ctx, "finish run failed",
			slog.String("run_id", report.Run.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Runner) loadTerms(ctx context.Context) ([]domain.ContractTerms, error) {
	var all []domain.ContractTerms
	for offset := 0; ; offset += listPageSize {
		page, err := r.terms.List(ctx, domain.ListOpts{Limit: listPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("portfolio: list terms: %w", err)
		}
		all = append(all, page...)
		if len(page) < listPageSize {
			return all, nil
		}
	}
}
