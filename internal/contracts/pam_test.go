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

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustCycle(t *testing.T, s string) *schedule.Cycle {
	t.Helper()
	c, err := schedule.ParseCycle(s)
	require.NoError(t, err)
	return &c
}

// bulletTerms is a five-year 5% fixed bullet with quarterly interest.
func bulletTerms(t *testing.T) *domain.ContractTerms {
	return &domain.ContractTerms{
		ContractID:             "pam1",
		ContractType:           "PAM",
		ContractRole:           domain.RoleAsset,
		Currency:               "USD",
		StatusDate:             date(2020, time.January, 1),
		InitialExchangeDate:    date(2020, time.January, 1),
		MaturityDate:           date(2025, time.January, 1),
		NotionalPrincipal:      100000,
		NominalInterestRate:    0.05,
		DayCount:               schedule.ThirtyE360,
		CycleOfInterestPayment: mustCycle(t, "P3ML1"),
	}
}

func simulate(t *testing.T, terms *domain.ContractTerms, rf domain.RiskFactorObserver) *engine.Result {
	t.Helper()
	c, err := engine.New(terms)
	require.NoError(t, err)
	res, err := c.Simulate(context.Background(), rf, nil)
	require.NoError(t, err)
	return res
}

func payoffsByType(res *engine.Result, et domain.EventType) []float64 {
	var out []float64
	for _, e := range res.Events {
		if e.Type == et {
			out = append(out, e.Payoff)
		}
	}
	return out
}

func TestBulletSimulation(t *testing.T) {
	res := simulate(t, bulletTerms(t), nil)

	// IED, 20 quarterly interest payments, maturity.
	require.Equal(t, 22, len(res.Events))
	assert.Equal(t, domain.EventIED, res.Events[0].Type)
	assert.Equal(t, domain.EventMD, res.Events[len(res.Events)-1].Type)

	// The asset role pays the principal out and receives it back.
	assert.InDelta(t, -100000.0, res.Events[0].Payoff, 1e-9)

	ips := payoffsByType(res, domain.EventIP)
	require.Equal(t, 20, len(ips))
	for _, p := range ips {
		assert.InDelta(t, 0.05*100000*0.25, p, 1e-9)
	}

	md := payoffsByType(res, domain.EventMD)
	require.Equal(t, 1, len(md))
	assert.InDelta(t, 100000.0, md[0], 1e-9)

	assert.Zero(t, res.FinalState.NotionalPrincipal)
	assert.Equal(t, domain.PerformanceMatured, res.FinalState.Performance)
}

func TestBulletLiabilityFlipsSigns(t *testing.T) {
	terms := bulletTerms(t)
	terms.ContractRole = domain.RoleLiability

	res := simulate(t, terms, nil)
	assert.InDelta(t, 100000.0, res.Events[0].Payoff, 1e-9)
	assert.InDelta(t, -1250.0, payoffsByType(res, domain.EventIP)[0], 1e-9)
	assert.InDelta(t, -100000.0, payoffsByType(res, domain.EventMD)[0], 1e-9)
}

func TestBulletCashflowsNet(t *testing.T) {
	res := simulate(t, bulletTerms(t), nil)

	var sum float64
	for _, cf := range res.Cashflows() {
		sum += cf.Amount
	}
	// Principal legs cancel; interest remains.
	assert.InDelta(t, 20*1250.0, sum, 1e-9)
}

func TestBulletRateReset(t *testing.T) {
	terms := bulletTerms(t)
	terms.MaturityDate = date(2022, time.January, 1)
	terms.CycleOfRateReset = mustCycle(t, "P1YL1")
	terms.MarketObjectCodeOfRateReset = "UST5Y"
	terms.RateSpread = 0.01

	rf := observer.NewInMemory()
	rf.AddConstant("UST5Y", 0.03)

	res := simulate(t, terms, rf)

	ips := payoffsByType(res, domain.EventIP)
	require.Equal(t, 8, len(ips))
	// The reset at the first anniversary lands before the same-day interest
	// payment, which still pays out the accrual booked at the old rate.
	for _, p := range ips[:4] {
		assert.InDelta(t, 1250.0, p, 1e-9)
	}
	// Quarters after the reset accrue at the observed rate plus spread.
	for _, p := range ips[4:] {
		assert.InDelta(t, 0.04*100000*0.25, p, 1e-9)
	}
	assert.InDelta(t, 0.04, res.FinalState.NominalInterestRate, 1e-12)
}

func TestBulletFixedFirstReset(t *testing.T) {
	next := 0.02
	terms := bulletTerms(t)
	terms.MaturityDate = date(2022, time.January, 1)
	terms.CycleOfRateReset = mustCycle(t, "P1YL1")
	terms.MarketObjectCodeOfRateReset = "UST5Y"
	terms.NextResetRate = &next

	// The fixed first reset needs no observation.
	res := simulate(t, terms, observer.NewInMemory())

	rrf := res.Schedule().FilterType(domain.EventRRF)
	require.Equal(t, 1, rrf.Len())
	assert.Equal(t, date(2021, time.January, 1), rrf.Events()[0].Time)

	ips := payoffsByType(res, domain.EventIP)
	assert.InDelta(t, 0.02*100000*0.25, ips[4], 1e-9)
}

func TestBulletRateResetLifeCap(t *testing.T) {
	cap := 0.035
	terms := bulletTerms(t)
	terms.MaturityDate = date(2022, time.January, 1)
	terms.CycleOfRateReset = mustCycle(t, "P1YL1")
	terms.MarketObjectCodeOfRateReset = "UST5Y"
	terms.RateSpread = 0.01
	terms.LifeCap = &cap

	rf := observer.NewInMemory()
	rf.AddConstant("UST5Y", 0.03)

	res := simulate(t, terms, rf)
	assert.InDelta(t, 0.035, res.FinalState.NominalInterestRate, 1e-12)
}

func TestBulletCapitalization(t *testing.T) {
	terms := bulletTerms(t)
	terms.MaturityDate = date(2023, time.January, 1)
	terms.CycleOfInterestPayment = mustCycle(t, "P1YL1")
	terms.CapitalizationEndDate = date(2021, time.January, 1)

	res := simulate(t, terms, nil)

	// The first anniversary capitalizes instead of paying cash.
	ipci := res.Schedule().FilterType(domain.EventIPCI)
	require.Equal(t, 1, ipci.Len())
	assert.Zero(t, ipci.Events()[0].Payoff)
	assert.InDelta(t, 105000.0, ipci.Events()[0].PostState.NotionalPrincipal, 1e-9)

	ips := payoffsByType(res, domain.EventIP)
	require.Equal(t, 2, len(ips))
	assert.InDelta(t, 0.05*105000, ips[0], 1e-9)

	assert.InDelta(t, 105000.0, payoffsByType(res, domain.EventMD)[0], 1e-9)
}

func TestBulletNotionalScaling(t *testing.T) {
	terms := bulletTerms(t)
	terms.MaturityDate = date(2022, time.January, 1)
	terms.ScalingEffect = "N00"
	terms.CycleOfScalingIndex = mustCycle(t, "P1YL1")
	terms.MarketObjectCodeOfScalingIndex = "CPI"
	terms.ScalingIndexAtStatusDate = 100

	rf := observer.NewInMemory()
	rf.AddConstant("CPI", 110)

	res := simulate(t, terms, rf)

	sc := res.Schedule().FilterType(domain.EventSC)
	require.Equal(t, 1, sc.Len())
	assert.InDelta(t, 1.1, sc.Events()[0].PostState.NotionalScalingMultiplier, 1e-12)

	// Maturity repays the scaled principal.
	assert.InDelta(t, 110000.0, payoffsByType(res, domain.EventMD)[0], 1e-9)
}

func TestBulletFees(t *testing.T) {
	terms := bulletTerms(t)
	terms.MaturityDate = date(2022, time.January, 1)
	terms.FeeRate = 0.01
	terms.FeeBasis = domain.FeeBasisNotional
	terms.CycleOfFee = mustCycle(t, "P1YL1")

	res := simulate(t, terms, nil)

	fps := payoffsByType(res, domain.EventFP)
	require.Equal(t, 2, len(fps))
	assert.InDelta(t, 0.01*100000, fps[0], 1e-9)
}

func TestBulletPrepayment(t *testing.T) {
	terms := bulletTerms(t)
	terms.CycleOfOptionality = mustCycle(t, "P1YL1")
	terms.ObjectCodeOfPrepaymentModel = "PPM"
	terms.PenaltyType = domain.PenaltyAbsolute
	terms.PenaltyRate = 500

	rf := observer.NewInMemory()
	rf.AddConstant("PPM", 0.1)

	res := simulate(t, terms, rf)

	// A tenth of the outstanding notional prepays on each anniversary; the
	// maturity date itself carries no prepayment.
	pps := payoffsByType(res, domain.EventPP)
	require.Equal(t, 4, len(pps))
	assert.InDelta(t, 10000.0, pps[0], 1e-6)
	assert.InDelta(t, 9000.0, pps[1], 1e-6)
	assert.InDelta(t, 8100.0, pps[2], 1e-6)
	assert.InDelta(t, 7290.0, pps[3], 1e-6)

	pys := payoffsByType(res, domain.EventPY)
	require.Equal(t, 4, len(pys))
	for _, p := range pys {
		assert.InDelta(t, 500.0, p, 1e-9)
	}

	// The anniversary interest payment settles before the same-day
	// prepayment shrinks the balance.
	ips := payoffsByType(res, domain.EventIP)
	require.Equal(t, 20, len(ips))
	assert.InDelta(t, 1250.0, ips[4], 1e-6)
	assert.InDelta(t, 1125.0, ips[5], 1e-6)

	md := payoffsByType(res, domain.EventMD)
	require.Equal(t, 1, len(md))
	assert.InDelta(t, 65610.0, md[0], 1e-5)
}

func TestBulletTermination(t *testing.T) {
	terms := bulletTerms(t)
	terms.TerminationDate = date(2021, time.February, 1)
	terms.PriceAtTermination = 99000

	res := simulate(t, terms, nil)

	last := res.Events[len(res.Events)-1]
	assert.Equal(t, domain.EventTD, last.Type)
	// One month of accrual since the January interest payment.
	wantAccrual := 0.05 * 100000 * 30.0 / 360.0
	assert.InDelta(t, 99000+wantAccrual, last.Payoff, 1e-9)
	assert.Equal(t, domain.PerformanceTerminated, res.FinalState.Performance)
	assert.Zero(t, res.FinalState.NotionalPrincipal)
}

func TestBulletSettlementCurrency(t *testing.T) {
	terms := bulletTerms(t)
	terms.MaturityDate = date(2021, time.January, 1)
	terms.SettlementCurrency = "EUR"

	rf := observer.NewInMemory()
	rf.AddConstant("USD/EUR", 0.9)

	res := simulate(t, terms, rf)
	assert.InDelta(t, -90000.0, res.Events[0].Payoff, 1e-9)
	assert.Equal(t, "EUR", res.Events[0].Currency)
}

func TestBulletInitialStateBeforeExchange(t *testing.T) {
	terms := bulletTerms(t)
	terms.StatusDate = date(2019, time.June, 1)

	typ, err := NewPrincipalAtMaturity(terms)
	require.NoError(t, err)
	st, err := typ.InitialState(terms)
	require.NoError(t, err)

	// Nothing is live before the initial exchange.
	assert.Zero(t, st.NotionalPrincipal)
	assert.Zero(t, st.AccruedInterest)
	assert.Equal(t, domain.PerformancePerforming, st.Performance)
}

func TestBulletInitialStateReconstructsAccrual(t *testing.T) {
	terms := bulletTerms(t)
	terms.StatusDate = date(2020, time.February, 1)

	typ, err := NewPrincipalAtMaturity(terms)
	require.NoError(t, err)
	st, err := typ.InitialState(terms)
	require.NoError(t, err)

	assert.InDelta(t, 100000.0, st.NotionalPrincipal, 1e-9)
	// One month of unbooked accrual since the initial exchange.
	assert.InDelta(t, 0.05*100000*30.0/360.0, st.AccruedInterest, 1e-9)

	// An explicit accrued interest term overrides the reconstruction.
	terms.AccruedInterest = 123.45
	st, err = typ.InitialState(terms)
	require.NoError(t, err)
	assert.InDelta(t, 123.45, st.AccruedInterest, 1e-9)
}

func TestBulletValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ContractTerms)
	}{
		{"missing currency", func(tt *domain.ContractTerms) { tt.Currency = "" }},
		{"missing initial exchange date", func(tt *domain.ContractTerms) { tt.InitialExchangeDate = time.Time{} }},
		{"zero notional", func(tt *domain.ContractTerms) { tt.NotionalPrincipal = 0 }},
		{"negative notional", func(tt *domain.ContractTerms) { tt.NotionalPrincipal = -1 }},
		{"missing day count", func(tt *domain.ContractTerms) { tt.DayCount = "" }},
		{"reset cycle without market code", func(tt *domain.ContractTerms) {
			tt.CycleOfRateReset = mustCycle(t, "P1YL1")
		}},
		{"optionality without prepayment model", func(tt *domain.ContractTerms) {
			tt.CycleOfOptionality = mustCycle(t, "P1YL1")
		}},
		{"interest differential penalty without rate code", func(tt *domain.ContractTerms) {
			tt.PenaltyType = domain.PenaltyInterestDifferential
		}},
		{"scaling without index code", func(tt *domain.ContractTerms) {
			tt.ScalingEffect = "N00"
			tt.ScalingIndexAtStatusDate = 100
		}},
		{"scaling without base level", func(tt *domain.ContractTerms) {
			tt.ScalingEffect = "N00"
			tt.MarketObjectCodeOfScalingIndex = "CPI"
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			terms := bulletTerms(t)
			tc.mutate(terms)
			_, err := NewPrincipalAtMaturity(terms)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}
