package observer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/quantfossa/flowsim/internal/contracts" // register contract types
	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/schedule"
)

// countingObserver counts resolutions while delegating to an inner observer.
type countingObserver struct {
	inner domain.RiskFactorObserver
	calls atomic.Int64
}

func (c *countingObserver) Observe(ctx context.Context, id string, t time.Time, st *domain.ContractState, terms *domain.ContractTerms) (float64, error) {
	c.calls.Add(1)
	return c.inner.Observe(ctx, id, t, st, terms)
}

func resettingNote(t *testing.T, id string) *engine.Contract {
	t.Helper()
	rr, err := schedule.ParseCycle("P1YL1")
	require.NoError(t, err)
	ip, err := schedule.ParseCycle("P3ML1")
	require.NoError(t, err)

	c, err := engine.New(&domain.ContractTerms{
		ContractID:                  id,
		ContractType:                "PAM",
		ContractRole:                domain.RoleAsset,
		Currency:                    "USD",
		StatusDate:                  date(2020, time.January, 1),
		InitialExchangeDate:         date(2020, time.January, 1),
		MaturityDate:                date(2022, time.January, 1),
		NotionalPrincipal:           100000,
		NominalInterestRate:         0.05,
		DayCount:                    schedule.ThirtyE360,
		CycleOfInterestPayment:      &ip,
		CycleOfRateReset:            &rr,
		MarketObjectCodeOfRateReset: "UST3M",
	})
	require.NoError(t, err)
	return c
}

func TestContractSetMemoizes(t *testing.T) {
	inner := NewInMemory()
	inner.AddConstant("UST3M", 0.03)
	rf := &countingObserver{inner: inner}

	set := NewContractSet(rf, resettingNote(t, "note1"))
	ctx := context.Background()

	res, err := set.Simulate(ctx, "note1")
	require.NoError(t, err)
	after := rf.calls.Load()
	require.Greater(t, after, int64(0))

	// A second access returns the memoized result without re-simulating.
	res2, err := set.Simulate(ctx, "note1")
	require.NoError(t, err)
	assert.Equal(t, res, res2)
	assert.Equal(t, after, rf.calls.Load())
}

func TestContractSetConcurrentAccess(t *testing.T) {
	inner := NewInMemory()
	inner.AddConstant("UST3M", 0.03)
	rf := &countingObserver{inner: inner}

	set := NewContractSet(rf, resettingNote(t, "note1"))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = set.Simulate(ctx, "note1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestContractSetFailureNotMemoized(t *testing.T) {
	rf := NewInMemory()
	set := NewContractSet(rf, resettingNote(t, "note1"))
	ctx := context.Background()

	// The reset has no fixing yet.
	_, err := set.Simulate(ctx, "note1")
	require.ErrorIs(t, err, domain.ErrSimulation)

	// Once the fixing arrives a retry succeeds.
	rf.AddConstant("UST3M", 0.03)
	res, err := set.Simulate(ctx, "note1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Events)
}

func TestContractSetUnknownContract(t *testing.T) {
	set := NewContractSet(NewInMemory())
	_, err := set.Simulate(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContractSetCycleDetection(t *testing.T) {
	swapRef := func(id, first, second string) *engine.Contract {
		c, err := engine.New(&domain.ContractTerms{
			ContractID:         id,
			ContractType:       "SWAP",
			ContractRole:       domain.RoleAsset,
			Currency:           "USD",
			StatusDate:         date(2020, time.January, 1),
			DeliverySettlement: domain.SettlementGross,
			ContractStructure: []domain.ContractReference{
				{ReferenceID: first, ReferenceRole: domain.RefFirstLeg},
				{ReferenceID: second, ReferenceRole: domain.RefSecondLeg},
			},
		})
		require.NoError(t, err)
		return c
	}

	inner := NewInMemory()
	inner.AddConstant("UST3M", 0.03)
	leg := resettingNote(t, "leg")

	// s1 and s2 reference each other.
	set := NewContractSet(inner, leg, swapRef("s1", "s2", "leg"), swapRef("s2", "s1", "leg"))
	_, err := set.Simulate(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestContractSetConcurrentCycleFailsFast(t *testing.T) {
	capRef := func(id, other string) *engine.Contract {
		cap := 0.04
		c, err := engine.New(&domain.ContractTerms{
			ContractID:   id,
			ContractType: "CAPFL",
			ContractRole: domain.RoleBuyer,
			Currency:     "USD",
			StatusDate:   date(2020, time.January, 1),
			LifeCap:      &cap,
			ContractStructure: []domain.ContractReference{
				{ReferenceID: other, ReferenceRole: domain.RefUnderlier},
			},
		})
		require.NoError(t, err)
		return c
	}

	// c1 and c2 reference each other and are simulated from separate
	// goroutines, so each side may be waiting on the other's in-flight
	// simulation rather than recursing within its own context chain.
	set := NewContractSet(NewInMemory(), capRef("c1", "c2"), capRef("c2", "c1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = set.Simulate(ctx, id)
		}(i, id)
	}
	wg.Wait()

	// Both sides surface the cycle error; neither blocks until the context
	// gives up.
	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.NotErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestContractSetEventsFrom(t *testing.T) {
	inner := NewInMemory()
	inner.AddConstant("UST3M", 0.03)
	set := NewContractSet(inner, resettingNote(t, "note1"))

	events, err := set.Events(context.Background(), "note1", date(2021, time.June, 1))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.False(t, e.Time.Before(date(2021, time.June, 1)))
	}
}

func TestContractSetStateAt(t *testing.T) {
	inner := NewInMemory()
	inner.AddConstant("UST3M", 0.03)
	set := NewContractSet(inner, resettingNote(t, "note1"))
	ctx := context.Background()

	// Mid-life the balance is outstanding.
	st, err := set.StateAt(ctx, "note1", date(2021, time.June, 1))
	require.NoError(t, err)
	assert.InDelta(t, 100000.0, st.NotionalPrincipal, 1e-9)

	// After maturity it is gone.
	st, err = set.StateAt(ctx, "note1", date(2022, time.June, 1))
	require.NoError(t, err)
	assert.Zero(t, st.NotionalPrincipal)
	assert.Equal(t, domain.PerformanceMatured, st.Performance)
}

func TestContractSetAttribute(t *testing.T) {
	set := NewContractSet(NewInMemory(), resettingNote(t, "note1"))
	ctx := context.Background()

	v, err := set.Attribute(ctx, "note1", "dayCountConvention")
	require.NoError(t, err)
	assert.Equal(t, schedule.ThirtyE360, v)

	v, err = set.Attribute(ctx, "note1", "notionalPrincipal")
	require.NoError(t, err)
	assert.InDelta(t, 100000.0, v.(float64), 1e-9)

	_, err = set.Attribute(ctx, "note1", "shoeSize")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = set.Attribute(ctx, "ghost", "currency")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContractSetIDs(t *testing.T) {
	inner := NewInMemory()
	set := NewContractSet(inner, resettingNote(t, "a"))
	set.Add(resettingNote(t, "b"))
	assert.ElementsMatch(t, []string{"a", "b"}, set.IDs())
}
