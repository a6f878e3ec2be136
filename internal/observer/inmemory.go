// Package observer provides risk-factor observer implementations and the
// engine-backed child-contract observer used by composite contracts.
package observer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantfossa/flowsim/internal/domain"
)

// Point is one dated observation of a market object.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// InMemory resolves observations from in-process time series. A lookup
// returns the most recent point at or before the requested time; an
// identifier with no usable point fails the lookup. It is safe for
// concurrent use and doubles as the test fixture observer.
type InMemory struct {
	mu     sync.RWMutex
	series map[string][]Point
}

// NewInMemory returns an empty observer.
func NewInMemory() *InMemory {
	return &InMemory{series: make(map[string][]Point)}
}

// NewInMemoryFromSeries builds an observer from complete series, sorting each
// by time.
func NewInMemoryFromSeries(series map[string][]Point) *InMemory {
	o := NewInMemory()
	for id, points := range series {
		for _, p := range points {
			o.Add(id, p.Time, p.Value)
		}
	}
	return o
}

// Add inserts one observation, keeping the series sorted.
func (o *InMemory) Add(id string, t time.Time, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := append(o.series[id], Point{Time: t, Value: v})
	sort.Slice(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	o.series[id] = s
}

// AddConstant registers a value that holds for all times.
func (o *InMemory) AddConstant(id string, v float64) {
	o.Add(id, time.Time{}, v)
}

// Observe returns the latest observation of id at or before t.
func (o *InMemory) Observe(_ context.Context, id string, t time.Time, _ *domain.ContractState, _ *domain.ContractTerms) (float64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.series[id]
	// Last point with Time <= t.
	i := sort.Search(len(s), func(i int) bool { return s[i].Time.After(t) })
	if i == 0 {
		return 0, fmt.Errorf("observer: %s at %s: %w", id, t.Format("2006-01-02"), domain.ErrNotFound)
	}
	return s[i-1].Value, nil
}

// Compile-time interface check.
var _ domain.RiskFactorObserver = (*InMemory)(nil)
