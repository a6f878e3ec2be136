package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
)

// ContractSet is an engine-backed ChildContractObserver: it owns a set of
// contracts and lazily simulates each one on first access, memoizing the
// result. Nested composites work because the set passes itself as the child
// observer of every simulation. Reference cycles within one goroutine are
// detected through the context, which carries the chain of contracts
// currently being simulated; cycles split across concurrent simulations are
// caught by the waiting-on graph, so a wait that would close a loop fails
// with ErrConfiguration instead of deadlocking, while waits on unrelated
// in-flight simulations proceed normally.
type ContractSet struct {
	rf domain.RiskFactorObserver

	mu        sync.Mutex
	contracts map[string]*engine.Contract
	inflight  map[string]*inflight
	// waiting maps a contract mid-simulation to the in-flight contract its
	// goroutine is blocked on. Chains are disjoint across goroutines, so a
	// contract id carries at most one edge.
	waiting map[string]string
}

// inflight is one simulation in progress or completed. Waiters block on done.
type inflight struct {
	done chan struct{}
	res  *engine.Result
	err  error
}

type visitKey struct{}

func visiting(ctx context.Context) map[string]bool {
	chain, _ := ctx.Value(visitKey{}).(map[string]bool)
	return chain
}

func withVisit(ctx context.Context, id string) context.Context {
	prev := visiting(ctx)
	chain := make(map[string]bool, len(prev)+1)
	for k := range prev {
		chain[k] = true
	}
	chain[id] = true
	return context.WithValue(ctx, visitKey{}, chain)
}

// NewContractSet builds a set over the given contracts, simulating against
// the given risk-factor observer.
func NewContractSet(rf domain.RiskFactorObserver, contracts ...*engine.Contract) *ContractSet {
	s := &ContractSet{
		rf:        rf,
		contracts: make(map[string]*engine.Contract, len(contracts)),
		inflight:  make(map[string]*inflight),
		waiting:   make(map[string]string),
	}
	for _, c := range contracts {
		s.contracts[c.ID()] = c
	}
	return s
}

// Add registers another contract with the set.
func (s *ContractSet) Add(c *engine.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[c.ID()] = c
}

// IDs returns the identifiers of all registered contracts.
func (s *ContractSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.contracts))
	for id := range s.contracts {
		ids = append(ids, id)
	}
	return ids
}

// Simulate returns the memoized simulation result for the given contract,
// running the simulation on first access. It is safe to call concurrently;
// each contract is simulated exactly once.
func (s *ContractSet) Simulate(ctx context.Context, id string) (*engine.Result, error) {
	return s.result(ctx, id)
}

func (s *ContractSet) result(ctx context.Context, id string) (*engine.Result, error) {
	chain := visiting(ctx)
	if chain[id] {
		return nil, fmt.Errorf("observer: child contract %s: reference cycle: %w", id, domain.ErrConfiguration)
	}

	s.mu.Lock()
	if f, ok := s.inflight[id]; ok {
		if s.wouldDeadlock(chain, id) {
			s.mu.Unlock()
			return nil, fmt.Errorf("observer: child contract %s: reference cycle: %w", id, domain.ErrConfiguration)
		}
		for k := range chain {
			s.waiting[k] = id
		}
		s.mu.Unlock()

		select {
		case <-f.done:
			s.clearWaits(chain, id)
			return f.res, f.err
		case <-ctx.Done():
			s.clearWaits(chain, id)
			return nil, ctx.Err()
		}
	}
	c, ok := s.contracts[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("observer: child contract %s: %w", id, domain.ErrNotFound)
	}
	f := &inflight{done: make(chan struct{})}
	s.inflight[id] = f
	s.mu.Unlock()

	f.res, f.err = c.Simulate(withVisit(ctx, id), s.rf, s)
	close(f.done)

	if f.err != nil {
		// Failed simulations are not memoized; a later caller may retry
		// after the underlying cause (e.g. a missing fixing) is repaired.
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}
	return f.res, f.err
}

// wouldDeadlock reports whether blocking on id would close a wait loop back
// to a contract this goroutine is itself simulating. It walks the recorded
// waiting-on edges starting from id; the walk terminates because an edge is
// only recorded after this check passes, so the graph never holds a cycle.
// Callers hold mu.
func (s *ContractSet) wouldDeadlock(chain map[string]bool, id string) bool {
	for cur, ok := id, true; ok; cur, ok = s.waiting[cur] {
		if chain[cur] {
			return true
		}
	}
	return false
}

func (s *ContractSet) clearWaits(chain map[string]bool, id string) {
	if len(chain) == 0 {
		return
	}
	s.mu.Lock()
	for k := range chain {
		if s.waiting[k] == id {
			delete(s.waiting, k)
		}
	}
	s.mu.Unlock()
}

// Events returns the child's simulated events from the given time onward.
func (s *ContractSet) Events(ctx context.Context, id string, from time.Time) ([]domain.ContractEvent, error) {
	res, err := s.result(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []domain.ContractEvent
	for _, e := range res.Events {
		if e.Time.Before(from) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// StateAt returns the child's state as of t: the post-state of the last
// event at or before t, or the initial state when no event has occurred yet.
func (s *ContractSet) StateAt(ctx context.Context, id string, t time.Time) (domain.ContractState, error) {
	res, err := s.result(ctx, id)
	if err != nil {
		return domain.ContractState{}, err
	}
	st := res.InitialState
	for _, e := range res.Events {
		if e.Time.After(t) {
			break
		}
		st = e.PostState
	}
	return st, nil
}

// Attribute returns a named term of the child contract. Names follow the
// terms record's JSON field names.
func (s *ContractSet) Attribute(_ context.Context, id, name string) (any, error) {
	s.mu.Lock()
	c, ok := s.contracts[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("observer: child contract %s: %w", id, domain.ErrNotFound)
	}

	terms := c.Terms()
	switch name {
	case "contractType":
		return terms.ContractType, nil
	case "contractRole":
		return terms.ContractRole, nil
	case "currency":
		return terms.Currency, nil
	case "notionalPrincipal":
		return terms.NotionalPrincipal, nil
	case "nominalInterestRate":
		return terms.NominalInterestRate, nil
	case "dayCountConvention":
		return terms.DayCount, nil
	case "initialExchangeDate":
		return terms.InitialExchangeDate, nil
	case "maturityDate":
		return terms.MaturityDate, nil
	case "statusDate":
		return terms.StatusDate, nil
	case "marketObjectCode":
		return terms.MarketObjectCode, nil
	default:
		return nil, fmt.Errorf("observer: child contract %s attribute %q: %w", id, name, domain.ErrNotFound)
	}
}

// Compile-time interface check.
var _ domain.ChildContractObserver = (*ContractSet)(nil)
