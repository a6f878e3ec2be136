package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfossa/flowsim/internal/domain"
)

// ResultStore implements domain.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a ResultStore backed by the given connection pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// CreateRun records a new simulation run.
func (s *ResultStore) CreateRun(ctx context.Context, run domain.SimulationRun) error {
	const query = `
		INSERT INTO simulation_runs (id, started_at, finished_at, contracts, failed, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.Contracts, run.Failed, string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun updates a run's terminal fields.
func (s *ResultStore) FinishRun(ctx context.Context, run domain.SimulationRun) error {
	const query = `
		UPDATE simulation_runs
		SET finished_at = $2, contracts = $3, failed = $4, status = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Contracts, run.Failed, string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// InsertCashflows writes one contract's cash flows under the run in a single
// batch.
func (s *ResultStore) InsertCashflows(ctx context.Context, runID, contractID string, flows []domain.Cashflow) error {
	if len(flows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO cashflows (run_id, contract_id, event_type, event_time, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)`

	batch := &pgx.Batch{}
	for _, f := range flows {
		batch.Queue(query, runID, contractID, string(f.Event), f.Time, f.Amount, f.Currency)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range flows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert cashflow %d for %s: %w", i, contractID, err)
		}
	}
	return nil
}

// ListCashflows returns a contract's cash flows for the run in time order.
func (s *ResultStore) ListCashflows(ctx context.Context, runID, contractID string) ([]domain.Cashflow, error) {
	const query = `
		SELECT event_type, event_time, amount, currency
		FROM cashflows
		WHERE run_id = $1 AND contract_id = $2
		ORDER BY event_time, id`

	rows, err := s.pool.Query(ctx, query, runID, contractID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cashflows %s/%s: %w", runID, contractID, err)
	}
	defer rows.Close()

	var out []domain.Cashflow
	for rows.Next() {
		var (
			f  domain.Cashflow
			et string
		)
		if err := rows.Scan(&et, &f.Time, &f.Amount, &f.Currency); err != nil {
			return nil, fmt.Errorf("postgres: scan cashflow row: %w", err)
		}
		f.Event = domain.EventType(et)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate cashflow rows: %w", err)
	}
	return out, nil
}

// LastRun returns the most recently started run.
func (s *ResultStore) LastRun(ctx context.Context) (domain.SimulationRun, error) {
	const query = `
		SELECT id, started_at, finished_at, contracts, failed, status
		FROM simulation_runs
		ORDER BY started_at DESC
		LIMIT 1`

	var (
		run    domain.SimulationRun
		status string
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Contracts, &run.Failed, &status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SimulationRun{}, fmt.Errorf("postgres: last run: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.SimulationRun{}, fmt.Errorf("postgres: last run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	return run, nil
}

// Compile-time interface check.
var _ domain.ResultStore = (*ResultStore)(nil)
