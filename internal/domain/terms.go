package domain

import (
	"time"

	"github.com/quantfossa/flowsim/internal/schedule"
)

// ContractRole determines the sign applied to raw cash amounts: assets
// receive what liabilities pay.
type ContractRole string

const (
	// RoleAsset holds the contract as a real position asset (receiver).
	RoleAsset ContractRole = "RPA"
	// RoleLiability holds the contract as a real position liability (payer).
	RoleLiability ContractRole = "RPL"
	// RoleBuyer buys a derivative contract.
	RoleBuyer ContractRole = "BUY"
	// RoleSeller sells a derivative contract.
	RoleSeller ContractRole = "SEL"
)

// roleSign is the static role to ±1 table of the sign convention.
var roleSign = map[ContractRole]float64{
	RoleAsset:     1,
	RoleLiability: -1,
	RoleBuyer:     1,
	RoleSeller:    -1,
}

// Sign returns +1 for receiving roles and -1 for paying roles. Unknown roles
// default to +1.
func (r ContractRole) Sign() float64 {
	if s, ok := roleSign[r]; ok {
		return s
	}
	return 1
}

// FeeBasis selects how fees accrue.
type FeeBasis string

const (
	// FeeBasisAbsolute pays the fee rate as an absolute amount per period.
	FeeBasisAbsolute FeeBasis = "A"
	// FeeBasisNotional accrues the fee rate on the outstanding notional.
	FeeBasisNotional FeeBasis = "N"
)

// PenaltyType selects how a prepayment penalty is computed.
type PenaltyType string

const (
	// PenaltyNone disables penalty events.
	PenaltyNone PenaltyType = "N"
	// PenaltyAbsolute pays the penalty rate as an absolute amount.
	PenaltyAbsolute PenaltyType = "A"
	// PenaltyRelative accrues the penalty rate on the outstanding notional
	// over the period since the last event.
	PenaltyRelative PenaltyType = "R"
	// PenaltyInterestDifferential pays the shortfall of the current market
	// rate against the nominal rate, accrued on the notional.
	PenaltyInterestDifferential PenaltyType = "I"
)

// InterestCalculationBase selects the accrual base for amortizing types.
type InterestCalculationBase string

const (
	// CalcBaseNotional accrues on the outstanding notional.
	CalcBaseNotional InterestCalculationBase = "NT"
	// CalcBaseNotionalAtInitialExchange freezes the base at the initial
	// notional.
	CalcBaseNotionalAtInitialExchange InterestCalculationBase = "NTIED"
	// CalcBaseNotionalLagged refixes the base at dedicated base-fixing
	// events.
	CalcBaseNotionalLagged InterestCalculationBase = "NTL"
)

// GuaranteedExposure selects how a credit enhancement computes the covered
// exposure.
type GuaranteedExposure string

const (
	ExposureNotional         GuaranteedExposure = "NO"
	ExposureNotionalInterest GuaranteedExposure = "NI"
	ExposureMarketValue      GuaranteedExposure = "MV"
)

// DeliverySettlement selects net or gross settlement for composites.
type DeliverySettlement string

const (
	SettlementNet   DeliverySettlement = "S"
	SettlementGross DeliverySettlement = "D"
)

// ReferenceRole names the part a child contract plays in a composite.
type ReferenceRole string

const (
	RefFirstLeg  ReferenceRole = "FIL"
	RefSecondLeg ReferenceRole = "SEL"
	RefUnderlier ReferenceRole = "UDL"
	RefCovered   ReferenceRole = "COVE"
	RefCovering  ReferenceRole = "COVI"
)

// ContractReference names one child contract of a composite.
type ContractReference struct {
	ReferenceID   string        `json:"referenceId"`
	ReferenceRole ReferenceRole `json:"referenceRole"`
}

// ContractTerms is the fully formed terms record of one contract. It is
// supplied by an external source; construction-time validation beyond what
// each contract type requires is out of scope here. Fields not relevant to a
// given contract type are left zero.
type ContractTerms struct {
	ContractID   string       `json:"contractId"`
	ContractType string       `json:"contractType"`
	ContractRole ContractRole `json:"contractRole"`

	Currency           string `json:"currency"`
	SettlementCurrency string `json:"settlementCurrency,omitempty"`

	StatusDate          time.Time  `json:"statusDate"`
	InitialExchangeDate time.Time  `json:"initialExchangeDate,omitempty"`
	MaturityDate        time.Time  `json:"maturityDate,omitempty"`
	PurchaseDate        time.Time  `json:"purchaseDate,omitempty"`
	TerminationDate     time.Time  `json:"terminationDate,omitempty"`
	CapitalizationEndDate time.Time `json:"capitalizationEndDate,omitempty"`

	NotionalPrincipal   float64 `json:"notionalPrincipal,omitempty"`
	PriceAtPurchase     float64 `json:"priceAtPurchaseDate,omitempty"`
	PriceAtTermination  float64 `json:"priceAtTerminationDate,omitempty"`
	NominalInterestRate float64 `json:"nominalInterestRate,omitempty"`
	AccruedInterest     float64 `json:"accruedInterest,omitempty"`

	DayCount              schedule.DayCount              `json:"dayCountConvention,omitempty"`
	BusinessDayConvention schedule.BusinessDayConvention `json:"businessDayConvention,omitempty"`
	EndOfMonthConvention  schedule.EndOfMonthConvention  `json:"endOfMonthConvention,omitempty"`
	CalendarCode          string                         `json:"calendar,omitempty"`

	// Interest payment schedule.
	CycleOfInterestPayment      *schedule.Cycle `json:"cycleOfInterestPayment,omitempty"`
	CycleAnchorOfInterestPayment time.Time      `json:"cycleAnchorDateOfInterestPayment,omitempty"`

	// Rate reset schedule.
	CycleOfRateReset       *schedule.Cycle `json:"cycleOfRateReset,omitempty"`
	CycleAnchorOfRateReset time.Time       `json:"cycleAnchorDateOfRateReset,omitempty"`
	MarketObjectCodeOfRateReset string     `json:"marketObjectCodeOfRateReset,omitempty"`
	RateSpread             float64         `json:"rateSpread,omitempty"`
	RateMultiplier         float64         `json:"rateMultiplier,omitempty"`
	NextResetRate          *float64        `json:"nextResetRate,omitempty"`
	LifeCap                *float64        `json:"lifeCap,omitempty"`
	LifeFloor              *float64        `json:"lifeFloor,omitempty"`

	// Fee schedule.
	CycleOfFee       *schedule.Cycle `json:"cycleOfFee,omitempty"`
	CycleAnchorOfFee time.Time       `json:"cycleAnchorDateOfFee,omitempty"`
	FeeBasis         FeeBasis        `json:"feeBasis,omitempty"`
	FeeRate          float64         `json:"feeRate,omitempty"`
	FeeAccrued       float64         `json:"feeAccrued,omitempty"`

	// Optionality (prepayment). The prepayment model observation at each
	// optionality date is the fraction of the outstanding notional prepaid.
	CycleOfOptionality          *schedule.Cycle `json:"cycleOfOptionality,omitempty"`
	CycleAnchorOfOptionality    time.Time       `json:"cycleAnchorDateOfOptionality,omitempty"`
	ObjectCodeOfPrepaymentModel string          `json:"objectCodeOfPrepaymentModel,omitempty"`
	PenaltyType                 PenaltyType     `json:"penaltyType,omitempty"`
	PenaltyRate                 float64         `json:"penaltyRate,omitempty"`

	// Principal redemption schedule (amortizers).
	CycleOfPrincipalRedemption       *schedule.Cycle `json:"cycleOfPrincipalRedemption,omitempty"`
	CycleAnchorOfPrincipalRedemption time.Time       `json:"cycleAnchorDateOfPrincipalRedemption,omitempty"`
	NextPrincipalRedemptionPayment   float64         `json:"nextPrincipalRedemptionPayment,omitempty"`

	// Interest calculation base (amortizers).
	InterestCalculationBase       InterestCalculationBase `json:"interestCalculationBase,omitempty"`
	InterestCalculationBaseAmount float64                 `json:"interestCalculationBaseAmount,omitempty"`
	CycleOfInterestCalculationBase       *schedule.Cycle  `json:"cycleOfInterestCalculationBase,omitempty"`
	CycleAnchorOfInterestCalculationBase time.Time        `json:"cycleAnchorDateOfInterestCalculationBase,omitempty"`

	// Scaling.
	ScalingEffect             string          `json:"scalingEffect,omitempty"`
	CycleOfScalingIndex       *schedule.Cycle `json:"cycleOfScalingIndex,omitempty"`
	CycleAnchorOfScalingIndex time.Time       `json:"cycleAnchorDateOfScalingIndex,omitempty"`
	MarketObjectCodeOfScalingIndex string     `json:"marketObjectCodeOfScalingIndex,omitempty"`
	ScalingIndexAtStatusDate  float64         `json:"scalingIndexAtStatusDate,omitempty"`

	// Composites.
	ContractStructure  []ContractReference `json:"contractStructure,omitempty"`
	DeliverySettlement DeliverySettlement  `json:"deliverySettlement,omitempty"`

	// Credit enhancement.
	GuaranteedExposure          GuaranteedExposure `json:"guaranteedExposure,omitempty"`
	CoverageOfCreditEnhancement float64            `json:"coverageOfCreditEnhancement,omitempty"`

	// MarketObjectCode identifies the contract itself in market observations
	// (used for market-value exposure).
	MarketObjectCode string `json:"marketObjectCode,omitempty"`
}

// Calendar resolves the configured business-day calendar, defaulting to the
// no-holiday calendar.
func (t *ContractTerms) Calendar() schedule.Calendar {
	cal, err := schedule.ParseCalendar(t.CalendarCode)
	if err != nil {
		return schedule.NoHolidayCalendar{}
	}
	return cal
}

// References returns the child references matching the given role.
func (t *ContractTerms) References(role ReferenceRole) []ContractReference {
	var out []ContractReference
	for _, r := range t.ContractStructure {
		if r.ReferenceRole == role {
			out = append(out, r)
		}
	}
	return out
}
