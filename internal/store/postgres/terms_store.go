package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfossa/flowsim/internal/domain"
)

// TermsStore implements domain.TermsStore using PostgreSQL. The terms record
// is stored as its JSON document; lookup columns are maintained alongside.
type TermsStore struct {
	pool *pgxpool.Pool
}

// NewTermsStore creates a TermsStore backed by the given connection pool.
func NewTermsStore(pool *pgxpool.Pool) *TermsStore {
	return &TermsStore{pool: pool}
}

// Upsert inserts or replaces one terms record.
func (s *TermsStore) Upsert(ctx context.Context, terms domain.ContractTerms) error {
	if terms.ContractID == "" {
		return fmt.Errorf("postgres: upsert terms: missing contract id: %w", domain.ErrConfiguration)
	}
	doc, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("postgres: marshal terms %s: %w", terms.ContractID, err)
	}

	const query = `
		INSERT INTO contract_terms (contract_id, contract_type, currency, terms, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (contract_id) DO UPDATE SET
			contract_type = EXCLUDED.contract_type,
			currency      = EXCLUDED.currency,
			terms         = EXCLUDED.terms,
			updated_at    = NOW()`

	_, err = s.pool.Exec(ctx, query, terms.ContractID, terms.ContractType, terms.Currency, doc)
	if err != nil {
		return fmt.Errorf("postgres: upsert terms %s: %w", terms.ContractID, err)
	}
	return nil
}

// Get returns the terms record for one contract.
func (s *TermsStore) Get(ctx context.Context, contractID string) (domain.ContractTerms, error) {
	const query = `SELECT terms FROM contract_terms WHERE contract_id = $1`

	var doc []byte
	err := s.pool.QueryRow(ctx, query, contractID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ContractTerms{}, fmt.Errorf("postgres: terms %s: %w", contractID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ContractTerms{}, fmt.Errorf("postgres: get terms %s: %w", contractID, err)
	}
	return unmarshalTerms(contractID, doc)
}

// List returns terms records in contract id order.
func (s *TermsStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ContractTerms, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT contract_id, terms
		FROM contract_terms
		ORDER BY contract_id
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terms: %w", err)
	}
	defer rows.Close()

	var out []domain.ContractTerms
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("postgres: scan terms row: %w", err)
		}
		terms, err := unmarshalTerms(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, terms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate terms rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored terms records.
func (s *TermsStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contract_terms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count terms: %w", err)
	}
	return n, nil
}

func unmarshalTerms(id string, doc []byte) (domain.ContractTerms, error) {
	var terms domain.ContractTerms
	if err := json.Unmarshal(doc, &terms); err != nil {
		return domain.ContractTerms{}, fmt.Errorf("postgres: unmarshal terms %s: %w", id, err)
	}
	return terms, nil
}

// Compile-time interface check.
var _ domain.TermsStore = (*TermsStore)(nil)
