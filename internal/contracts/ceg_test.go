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
)

func guaranteeTerms() *domain.ContractTerms {
	return &domain.ContractTerms{
		ContractID:                  "ceg1",
		ContractType:                "CEG",
		ContractRole:                domain.RoleAsset,
		Currency:                    "USD",
		StatusDate:                  date(2020, time.January, 1),
		MaturityDate:                date(2021, time.January, 1),
		NotionalPrincipal:           50000,
		CoverageOfCreditEnhancement: 0.8,
		GuaranteedExposure:          domain.ExposureNotional,
		ContractStructure: []domain.ContractReference{
			{ReferenceID: "cov", ReferenceRole: domain.RefCovered},
		},
	}
}

// coveredAmortizer is the 120000 quarterly amortizer under guarantee.
func coveredAmortizer(t *testing.T) *engine.Contract {
	t.Helper()
	terms := amortizerTerms(t)
	terms.ContractID = "cov"
	c, err := engine.New(terms)
	require.NoError(t, err)
	return c
}

func notionalsByType(res *engine.Result, et domain.EventType) []float64 {
	var out []float64
	for _, e := range res.Events {
		if e.Type == et {
			out = append(out, e.PostState.NotionalPrincipal)
		}
	}
	return out
}

func TestGuaranteeTracksExposure(t *testing.T) {
	ceg, err := engine.New(guaranteeTerms())
	require.NoError(t, err)

	set := observer.NewContractSet(nil, coveredAmortizer(t), ceg)
	res, err := set.Simulate(context.Background(), "ceg1")
	require.NoError(t, err)

	// The guarantee never pays while the covered contract performs.
	assert.Empty(t, res.Cashflows())

	// Monitoring events re-cap the notional: the collateral limit binds
	// while the covered balance is high, the coverage ratio afterwards.
	ads := notionalsByType(res, domain.EventAD)
	require.Equal(t, 5, len(ads))
	assert.InDelta(t, 50000.0, ads[0], 1e-9) // balance 120000, ratio gives 96000
	assert.InDelta(t, 50000.0, ads[1], 1e-9) // balance 90000
	assert.InDelta(t, 48000.0, ads[2], 1e-9) // balance 60000
	assert.InDelta(t, 24000.0, ads[3], 1e-9) // balance 30000
	assert.Zero(t, ads[4])                   // covered contract matured

	assert.Zero(t, res.FinalState.NotionalPrincipal)
	assert.Equal(t, domain.PerformanceMatured, res.FinalState.Performance)
}

func TestGuaranteeMarketValueExposure(t *testing.T) {
	covTerms := amortizerTerms(t)
	covTerms.ContractID = "cov"
	covTerms.MarketObjectCode = "BOND1"
	cov, err := engine.New(covTerms)
	require.NoError(t, err)

	terms := guaranteeTerms()
	terms.GuaranteedExposure = domain.ExposureMarketValue
	ceg, err := engine.New(terms)
	require.NoError(t, err)

	rf := observer.NewInMemory()
	rf.AddConstant("BOND1", 40000)

	set := observer.NewContractSet(rf, cov, ceg)
	res, err := set.Simulate(context.Background(), "ceg1")
	require.NoError(t, err)

	ads := notionalsByType(res, domain.EventAD)
	require.NotEmpty(t, ads)
	assert.InDelta(t, 0.8*40000, ads[0], 1e-9)
}

func TestGuaranteeDefaultRatioIsFull(t *testing.T) {
	terms := guaranteeTerms()
	terms.CoverageOfCreditEnhancement = 0
	terms.NotionalPrincipal = 1000000
	ceg, err := engine.New(terms)
	require.NoError(t, err)

	set := observer.NewContractSet(nil, coveredAmortizer(t), ceg)
	res, err := set.Simulate(context.Background(), "ceg1")
	require.NoError(t, err)

	ads := notionalsByType(res, domain.EventAD)
	require.NotEmpty(t, ads)
	// A zero ratio means full coverage of the exposure.
	assert.InDelta(t, 120000.0, ads[0], 1e-9)
}

func TestGuaranteeMissingCoveredFails(t *testing.T) {
	ceg, err := engine.New(guaranteeTerms())
	require.NoError(t, err)

	set := observer.NewContractSet(nil, ceg)
	_, err = set.Simulate(context.Background(), "ceg1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGuaranteeValidation(t *testing.T) {
	terms := guaranteeTerms()
	terms.ContractStructure = nil
	_, err := NewCreditEnhancement(terms)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	terms = guaranteeTerms()
	terms.CoverageOfCreditEnhancement = -0.5
	_, err = NewCreditEnhancement(terms)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	terms = guaranteeTerms()
	terms.GuaranteedExposure = "XX"
	_, err = NewCreditEnhancement(terms)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
