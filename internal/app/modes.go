package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/feed"
	"github.com/quantfossa/flowsim/internal/observer"
	"github.com/quantfossa/flowsim/internal/portfolio"
)

// BatchMode executes one batch simulation over the stored portfolio,
// persists the cash flows, optionally exports the run to blob storage, and
// returns.
func (a *App) BatchMode(ctx context.Context, deps *Dependencies) error {
	opts := []portfolio.RunnerOption{
		portfolio.WithNotifier(deps.Notifier),
		portfolio.WithEngineOptions(engine.WithHorizonYears(a.cfg.Batch.HorizonYears)),
	}
	if a.cfg.Batch.UseLock && deps.LockManager != nil {
		opts = append(opts, portfolio.WithLockManager(deps.LockManager))
	}

	runner := portfolio.NewRunner(
		deps.TermsStore,
		deps.ResultStore,
		deps.RiskFactors,
		a.cfg.Batch.Workers,
		a.logger,
		opts...,
	)

	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: batch run: %w", err)
	}

	if deps.Exporter != nil {
		ids := make([]string, 0, len(report.Results))
		for id := range report.Results {
			ids = append(ids, id)
		}
		if err := deps.Exporter.ExportRun(ctx, report.Run, ids); err != nil {
			return fmt.Errorf("app: export run: %w", err)
		}
		a.logger.InfoContext(ctx, "run exported",
			slog.String("run_id", report.Run.ID),
			slog.Int("contracts", len(ids)),
		)
	}
	return nil
}

// fileOutput is the JSON document written by file mode.
type fileOutput struct {
	Cashflows map[string][]domain.Cashflow `json:"cashflows"`
	Errors    map[string]string            `json:"errors,omitempty"`
}

// FileMode simulates a portfolio from local JSON inputs and writes the cash
// flows to the output file. No backing services are used.
func (a *App) FileMode(ctx context.Context, deps *Dependencies) error {
	terms, err := loadTermsFile(a.cfg.File.TermsPath)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if a.cfg.File.FixingsPath != "" {
		if err := loadFixingsFile(a.cfg.File.FixingsPath, deps.Fixings); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	set := observer.NewContractSet(deps.RiskFactors)
	var ids []string
	out := fileOutput{
		Cashflows: make(map[string][]domain.Cashflow),
		Errors:    make(map[string]string),
	}
	for i := range terms {
		rec := terms[i]
		c, err := engine.New(&rec, engine.WithHorizonYears(a.cfg.Batch.HorizonYears))
		if err != nil {
			a.logger.ErrorContext(ctx, "contract rejected",
				slog.String("contract_id", rec.ContractID),
				slog.String("error", err.Error()),
			)
			out.Errors[rec.ContractID] = err.Error()
			continue
		}
		set.Add(c)
		ids = append(ids, rec.ContractID)
	}

	for _, id := range ids {
		res, err := set.Simulate(ctx, id)
		if err != nil {
			a.logger.ErrorContext(ctx, "contract simulation failed",
				slog.String("contract_id", id),
				slog.String("error", err.Error()),
			)
			out.Errors[id] = err.Error()
			continue
		}
		out.Cashflows[id] = res.Cashflows()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("app: encode output: %w", err)
	}
	if err := os.WriteFile(a.cfg.File.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("app: write output %s: %w", a.cfg.File.OutputPath, err)
	}

	a.logger.InfoContext(ctx, "file run finished",
		slog.String("output", a.cfg.File.OutputPath),
		slog.Int("contracts", len(terms)),
		slog.Int("failed", len(out.Errors)),
	)
	return nil
}

// FeedMode consumes the fixings stream and populates the observation cache
// until the context is cancelled.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	feeder := feed.NewObserverFeeder(deps.Fixings, deps.ObservationCache, a.logger)
	ws := feed.NewFixingsWS(a.cfg.Feed.WsURL, a.cfg.Feed.MarketObjects, feeder.Handle, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := ws.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("fixings feed: %w", err)
	})
	return g.Wait()
}

func loadTermsFile(path string) ([]domain.ContractTerms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terms %s: %w", path, err)
	}
	var terms []domain.ContractTerms
	if err := json.Unmarshal(data, &terms); err != nil {
		return nil, fmt.Errorf("parse terms %s: %w", path, err)
	}
	return terms, nil
}

func loadFixingsFile(path string, sink *observer.InMemory) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixings %s: %w", path, err)
	}
	var fixings []feed.Fixing
	if err := json.Unmarshal(data, &fixings); err != nil {
		return fmt.Errorf("parse fixings %s: %w", path, err)
	}
	for _, fx := range fixings {
		if fx.ID == "" {
			continue
		}
		sink.Add(fx.ID, fx.Time, fx.Value)
	}
	return nil
}
