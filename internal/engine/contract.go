package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
)

// ContractType is one entry of the contract type catalog: a schedule
// generator, an initial-state constructor, and static payoff/transition
// tables keyed by event type. An event type missing from a table gets
// identity behavior (keep the event's payoff, advance the status date),
// which is how composite types pass child events through untouched.
type ContractType interface {
	InitialState(terms *domain.ContractTerms) (domain.ContractState, error)
	Schedule(terms *domain.ContractTerms, horizon time.Time) ([]domain.ContractEvent, error)
	Payoffs() map[domain.EventType]PayoffFunc
	Transitions() map[domain.EventType]TransitionFunc
}

// Composer is implemented by composite contract types whose schedule derives
// from child contracts instead of their own terms.
type Composer interface {
	Compose(ctx context.Context, terms *domain.ContractTerms, child domain.ChildContractObserver, horizon time.Time) ([]domain.ContractEvent, error)
}

// StatefulComposer is implemented by composite types whose state transitions
// need child contract access (e.g. coverage caps recomputed from child
// exposure).
type StatefulComposer interface {
	ComposeTransition(ctx context.Context, et domain.EventType, st domain.ContractState, terms *domain.ContractTerms, t time.Time, rf domain.RiskFactorObserver, child domain.ChildContractObserver) (domain.ContractState, error)
}

// DefaultHorizonYears bounds contracts without a fixed maturity.
const DefaultHorizonYears = 100

// Options tune a single contract engine instance.
type Options struct {
	// HorizonYears replaces the default fallback horizon for contracts
	// lacking a maturity date.
	HorizonYears int
	// AnalysisTimes adds zero-payoff monitoring events at the given times.
	AnalysisTimes []time.Time
}

// Option mutates Options.
type Option func(*Options)

// WithHorizonYears sets the fallback horizon.
func WithHorizonYears(years int) Option {
	return func(o *Options) { o.HorizonYears = years }
}

// WithAnalysisTimes adds monitoring events to the schedule.
func WithAnalysisTimes(times ...time.Time) Option {
	return func(o *Options) { o.AnalysisTimes = append(o.AnalysisTimes, times...) }
}

// Contract is the per-contract state machine: uninitialized, then scheduled
// once the event schedule has been generated and cached, then simulated. The
// cached schedule survives for the contract's lifetime unless explicitly
// invalidated after an attribute change.
type Contract struct {
	terms *domain.ContractTerms
	typ   ContractType
	opts  Options

	mu        sync.Mutex
	schedule  []domain.ContractEvent
	scheduled bool
}

// New builds a Contract from fully formed terms using the default registry.
func New(terms *domain.ContractTerms, opts ...Option) (*Contract, error) {
	return NewFromRegistry(defaultRegistry, terms, opts...)
}

// NewFromRegistry builds a Contract using an explicit registry.
func NewFromRegistry(r *Registry, terms *domain.ContractTerms, opts ...Option) (*Contract, error) {
	if terms.ContractID == "" {
		return nil, fmt.Errorf("engine: missing contract id: %w", domain.ErrConfiguration)
	}
	typ, err := r.Build(terms)
	if err != nil {
		return nil, err
	}
	o := Options{HorizonYears: DefaultHorizonYears}
	for _, fn := range opts {
		fn(&o)
	}
	return &Contract{terms: terms, typ: typ, opts: o}, nil
}

// Terms returns the contract's terms record.
func (c *Contract) Terms() *domain.ContractTerms { return c.terms }

// ID returns the contract identifier.
func (c *Contract) ID() string { return c.terms.ContractID }

// InitialState derives the first contract state purely from the terms.
func (c *Contract) InitialState() (domain.ContractState, error) {
	st, err := c.typ.InitialState(c.terms)
	if err != nil {
		return domain.ContractState{}, fmt.Errorf("engine: %s: initial state: %w", c.ID(), err)
	}
	return st, nil
}

// Horizon returns the date events are generated up to: the maturity date when
// fixed, else the configured horizon anchored at the purchase date (falling
// back to the status date).
func (c *Contract) Horizon() time.Time {
	if !c.terms.MaturityDate.IsZero() {
		return c.terms.MaturityDate
	}
	anchor := c.terms.StatusDate
	if !c.terms.PurchaseDate.IsZero() {
		anchor = c.terms.PurchaseDate
	}
	years := c.opts.HorizonYears
	if years <= 0 {
		years = DefaultHorizonYears
	}
	return anchor.AddDate(years, 0, 0)
}

// EventSchedule generates (or returns the cached) event schedule. Composite
// types need the child observer; plain types ignore it.
func (c *Contract) EventSchedule(ctx context.Context, child domain.ChildContractObserver) (domain.EventSchedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureScheduleLocked(ctx, child); err != nil {
		return domain.EventSchedule{}, err
	}
	return domain.NewEventSchedule(c.ID(), c.schedule), nil
}

// InvalidateSchedule discards the cached schedule. Call after changing the
// terms record.
func (c *Contract) InvalidateSchedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = nil
	c.scheduled = false
}

func (c *Contract) ensureScheduleLocked(ctx context.Context, child domain.ChildContractObserver) error {
	if c.scheduled {
		return nil
	}

	var (
		events []domain.ContractEvent
		err    error
	)
	if composer, ok := c.typ.(Composer); ok {
		events, err = composer.Compose(ctx, c.terms, child, c.Horizon())
	} else {
		events, err = c.typ.Schedule(c.terms, c.Horizon())
	}
	if err != nil {
		return fmt.Errorf("engine: %s: generate schedule: %w", c.ID(), err)
	}

	events = c.overlay(events)
	domain.SortEvents(events)
	c.schedule = events
	c.scheduled = true
	return nil
}

// overlay applies the edge-case policies shared by every contract type:
// business-day adjustment, suppression of events before the status and
// purchase dates, purchase and termination events, and monitoring times.
func (c *Contract) overlay(events []domain.ContractEvent) []domain.ContractEvent {
	terms := c.terms
	cal := terms.Calendar()
	bdc := terms.BusinessDayConvention

	adjusted := make([]domain.ContractEvent, 0, len(events))
	for _, e := range events {
		raw := e.Time
		e.Time = bdc.Adjust(raw, cal)
		if !bdc.ShiftsCalcTime() && !e.Time.Equal(raw) {
			e.CalcTime = raw
		}
		adjusted = append(adjusted, e)
	}
	events = adjusted

	// Events strictly before the status date never enter the history; state
	// behaves as though they already occurred (the initial state constructor
	// is responsible for that).
	cutoff := terms.StatusDate
	if !terms.PurchaseDate.IsZero() && terms.PurchaseDate.After(cutoff) {
		cutoff = terms.PurchaseDate
	}
	kept := events[:0]
	for _, e := range events {
		if e.Time.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	events = kept

	if !terms.PurchaseDate.IsZero() && !terms.PurchaseDate.Before(terms.StatusDate) {
		events = append(events, domain.NewEvent(domain.EventPRD, terms.PurchaseDate, time.Time{}, SettlementCurrency(terms)))
	}

	// An explicit termination date suppresses all later events and settles
	// the contract with a single termination event.
	if !terms.TerminationDate.IsZero() {
		kept := events[:0]
		for _, e := range events {
			if e.Time.After(terms.TerminationDate) {
				continue
			}
			kept = append(kept, e)
		}
		events = append(kept, domain.NewEvent(domain.EventTD, terms.TerminationDate, time.Time{}, SettlementCurrency(terms)))
	}

	for _, t := range c.opts.AnalysisTimes {
		if t.Before(cutoff) {
			continue
		}
		events = append(events, domain.NewEvent(domain.EventAD, t, time.Time{}, SettlementCurrency(terms)))
	}

	return events
}

// Simulate folds the cached schedule into an event/state history. For every
// event the payoff is computed from the pre-event state BEFORE the state
// transition is applied; several payoffs reference notional and accruals as
// of just before the event, and reversing the order corrupts results. The
// observer arguments are required for contract types that consult them; a
// failed observation aborts the simulation with no partial output.
func (c *Contract) Simulate(ctx context.Context, rf domain.RiskFactorObserver, child domain.ChildContractObserver) (*Result, error) {
	sched, err := c.EventSchedule(ctx, child)
	if err != nil {
		return nil, err
	}

	initial, err := c.InitialState()
	if err != nil {
		return nil, err
	}

	pofs := c.typ.Payoffs()
	stfs := c.typ.Transitions()
	composer, hasComposerSTF := c.typ.(StatefulComposer)

	events := sched.Events()
	history := make([]domain.ContractEvent, 0, len(events))
	st := initial

	for _, ev := range events {
		calc := ev.CalculationTime()
		pre := st

		payoff := ev.Payoff
		if pof, ok := pofs[ev.Type]; ok {
			payoff, err = pof(ctx, ev.Type, pre, c.terms, calc, rf)
			if err != nil {
				return nil, fmt.Errorf("engine: %s: %s payoff at %s: %w",
					c.ID(), ev.Type, ev.Time.Format("2006-01-02"), wrapSimulation(err))
			}
		}

		var post domain.ContractState
		switch {
		case stfs[ev.Type] != nil:
			post, err = stfs[ev.Type](ctx, ev.Type, pre, c.terms, calc, rf)
		case hasComposerSTF:
			post, err = composer.ComposeTransition(ctx, ev.Type, pre, c.terms, calc, rf, child)
		default:
			post = pre
		}
		if err != nil {
			return nil, fmt.Errorf("engine: %s: %s transition at %s: %w",
				c.ID(), ev.Type, ev.Time.Format("2006-01-02"), wrapSimulation(err))
		}

		post.StatusDate = ev.Time
		if post.StatusDate.Before(pre.StatusDate) {
			return nil, fmt.Errorf("engine: %s: status date regressed at %s %s: %w",
				c.ID(), ev.Type, ev.Time.Format("2006-01-02"), domain.ErrSimulation)
		}

		ev.Payoff = payoff
		ev.PreState = pre
		ev.PostState = post
		history = append(history, ev)
		st = post
	}

	return &Result{
		ContractID:   c.ID(),
		InitialState: initial,
		FinalState:   st,
		Events:       history,
	}, nil
}

// wrapSimulation tags err with domain.ErrSimulation unless it already carries
// a taxonomy sentinel.
func wrapSimulation(err error) error {
	for _, sentinel := range []error{domain.ErrSimulation, domain.ErrSchedule, domain.ErrConfiguration} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrSimulation, err)
}
