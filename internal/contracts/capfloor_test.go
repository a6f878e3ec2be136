package contracts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfossa/flowsim/internal/domain"
	"github.com/quantfossa/flowsim/internal/engine"
	"github.com/quantfossa/flowsim/internal/observer"
	"github.com/quantfossa/flowsim/internal/schedule"
)

// floatingUnderlier is a one-year 5% quarterly-pay note, optionally resetting
// annually off UST3M.
func floatingUnderlier(t *testing.T) *engine.Contract {
	t.Helper()
	c, err := engine.New(&domain.ContractTerms{
		ContractID:             "udl",
		ContractType:           "PAM",
		ContractRole:           domain.RoleAsset,
		Currency:               "USD",
		StatusDate:             date(2020, time.January, 1),
		InitialExchangeDate:    date(2020, time.January, 1),
		MaturityDate:           date(2021, time.January, 1),
		NotionalPrincipal:      100000,
		NominalInterestRate:    0.05,
		DayCount:               schedule.ThirtyE360,
		CycleOfInterestPayment: mustCycle(t, "P3ML1"),
	})
	require.NoError(t, err)
	return c
}

func capFloorTerms(cap, floor *float64) *domain.ContractTerms {
	return &domain.ContractTerms{
		ContractID:   "capfl1",
		ContractType: "CAPFL",
		ContractRole: domain.RoleBuyer,
		Currency:     "USD",
		StatusDate:   date(2020, time.January, 1),
		LifeCap:      cap,
		LifeFloor:    floor,
		ContractStructure: []domain.ContractReference{
			{ReferenceID: "udl", ReferenceRole: domain.RefUnderlier},
		},
	}
}

func simulateCapFloor(t *testing.T, terms *domain.ContractTerms) *engine.Result {
	t.Helper()
	capfl, err := engine.New(terms)
	require.NoError(t, err)
	set := observer.NewContractSet(nil, floatingUnderlier(t), capfl)
	res, err := set.Simulate(context.Background(), terms.ContractID)
	require.NoError(t, err)
	return res
}

func TestCapPaysExcess(t *testing.T) {
	cap := 0.04
	res := simulateCapFloor(t, capFloorTerms(&cap, nil))

	// The underlier runs 1% above the cap through all four quarters.
	flows := res.Cashflows()
	require.Equal(t, 4, len(flows))
	for _, cf := range flows {
		assert.Equal(t, domain.EventIP, cf.Event)
		assert.InDelta(t, 0.01*100000*0.25, cf.Amount, 1e-9)
	}
}

func TestCapAboveRatePaysNothing(t *testing.T) {
	cap := 0.06
	res := simulateCapFloor(t, capFloorTerms(&cap, nil))

	// Every event exists but carries zero cash.
	assert.Equal(t, 4, res.Schedule().FilterType(domain.EventIP).Len())
	assert.Empty(t, res.Cashflows())
}

func TestFloorPaysShortfall(t *testing.T) {
	floor := 0.06
	res := simulateCapFloor(t, capFloorTerms(nil, &floor))

	flows := res.Cashflows()
	require.Equal(t, 4, len(flows))
	for _, cf := range flows {
		assert.InDelta(t, 0.01*100000*0.25, cf.Amount, 1e-9)
	}
}

func TestCapMidLifePurchase(t *testing.T) {
	// Bought half a year into the underlier's life: only the later periods
	// pay, and the first of them covers a single quarter rather than
	// everything since the underlier's initial exchange.
	cap := 0.04
	terms := capFloorTerms(&cap, nil)
	terms.StatusDate = date(2020, time.July, 1)

	res := simulateCapFloor(t, terms)

	flows := res.Cashflows()
	require.Equal(t, 3, len(flows))
	assert.Equal(t, date(2020, time.July, 1), flows[0].Time)
	for _, cf := range flows {
		assert.InDelta(t, 0.01*100000*0.25, cf.Amount, 1e-9)
	}
}

func TestCapSellerFlipsSign(t *testing.T) {
	cap := 0.04
	terms := capFloorTerms(&cap, nil)
	terms.ContractRole = domain.RoleSeller

	res := simulateCapFloor(t, terms)
	for _, cf := range res.Cashflows() {
		assert.InDelta(t, -250.0, cf.Amount, 1e-9)
	}
}

func TestCapTracksResets(t *testing.T) {
	// An annually resetting underlier drops to 3% after the first year.
	udl, err := engine.New(&domain.ContractTerms{
		ContractID:                  "udl",
		ContractType:                "PAM",
		ContractRole:                domain.RoleAsset,
		Currency:                    "USD",
		StatusDate:                  date(2020, time.January, 1),
		InitialExchangeDate:         date(2020, time.January, 1),
		MaturityDate:                date(2022, time.January, 1),
		NotionalPrincipal:           100000,
		NominalInterestRate:         0.05,
		DayCount:                    schedule.ThirtyE360,
		CycleOfInterestPayment:      mustCycle(t, "P3ML1"),
		CycleOfRateReset:            mustCycle(t, "P1YL1"),
		MarketObjectCodeOfRateReset: "UST3M",
	})
	require.NoError(t, err)

	cap := 0.04
	capfl, err := engine.New(capFloorTerms(&cap, nil))
	require.NoError(t, err)

	rf := observer.NewInMemory()
	rf.AddConstant("UST3M", 0.03)

	set := observer.NewContractSet(rf, udl, capfl)
	res, err := set.Simulate(context.Background(), "capfl1")
	require.NoError(t, err)

	// The anniversary reset lands before the same-day payment, so the fourth
	// payment already references the 3% level: three in-the-money quarters,
	// then worthless ones.
	ips := res.Schedule().FilterType(domain.EventIP).Events()
	require.Equal(t, 8, len(ips))
	for _, e := range ips[:3] {
		assert.InDelta(t, 250.0, e.Payoff, 1e-9)
	}
	for _, e := range ips[3:] {
		assert.Zero(t, e.Payoff)
	}
}

func TestCapFloorValidation(t *testing.T) {
	cap, floor := 0.02, 0.05

	// No bound at all.
	_, err := NewCapFloor(capFloorTerms(nil, nil))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	// Floor above cap.
	_, err = NewCapFloor(capFloorTerms(&cap, &floor))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	// Missing underlier reference.
	terms := capFloorTerms(&cap, nil)
	terms.ContractStructure = nil
	_, err = NewCapFloor(terms)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
