// Package bond implements the amortizing liabilities utilities issue to pay
// for triggered infrastructure: level annual debt service over a fixed term,
// optionally rescaled year to year by the issuer's current allocation share
// of a jointly owned treatment plant. Money figures are held as decimals so
// that decades of weekly accrual cannot drift the schedule.
package bond

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/bernardoct/Heraclitus/constants"
)

// Kind selects the debt-service behavior.
type Kind int

const (
	// Fixed bonds pay a constant level annual service.
	Fixed Kind = iota
	// VariableInterest bonds rescale the level service by the issuer's
	// current allocated treatment fraction before each payment.
	VariableInterest
)

// Bond is one amortizing liability tied to a water source. A Bond is built
// unissued from configuration; Issue fixes the repayment schedule when the
// backing project's construction begins.
type Bond struct {
	sourceID  int
	kind      Kind
	principal decimal.Decimal
	termYears int
	rate      float64

	issued           bool
	issueWeek        int
	firstPaymentWeek int
	scaledTermYears  int
	payment          decimal.Decimal // current level annual debt service
	basePayment      decimal.Decimal // unscaled, for VariableInterest rescale
}

// New returns an unissued bond for the given source.
func New(sourceID int, kind Kind, principal float64, termYears int, rate float64) *Bond {
	return &Bond{
		sourceID:  sourceID,
		kind:      kind,
		principal: decimal.NewFromFloat(principal),
		termYears: termYears,
		rate:      rate,
	}
}

func (b *Bond) SourceID() int { return b.sourceID }
func (b *Bond) Kind() Kind    { return b.kind }
func (b *Bond) Issued() bool  { return b.issued }

// Principal returns the current (possibly sequence-adjusted) principal.
func (b *Bond) Principal() float64 { return b.principal.InexactFloat64() }

// ReducePrincipal lowers the principal of a not-yet-issued bond, used when a
// sequenced project's predecessor has already paid down part of the shared
// capital cost. Reducing an issued bond's principal is a contract violation.
func (b *Bond) ReducePrincipal(amount float64) {
	if b.issued {
		panic(fmt.Sprintf("bond for source %d: principal adjustment after issuance", b.sourceID))
	}
	b.principal = b.principal.Sub(decimal.NewFromFloat(amount))
	if b.principal.IsNegative() {
		b.principal = decimal.Zero
	}
}

// Issue fixes the repayment schedule: first payment falls constructionTime
// weeks after week, the nominal term and rate are scaled by the
// realization's RDM multipliers, and the level annual service is computed
// from the scaled figures. Issue is idempotent; repeated calls after the
// first are no-ops.
func (b *Bond) Issue(week, constructionTime int, termMultiplier, rateMultiplier float64) {
	if b.issued {
		return
	}
	n := int(math.Round(float64(b.termYears) * termMultiplier))
	r := b.rate * rateMultiplier
	factor := r / (1 - math.Pow(1+r, -float64(n)))
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		panic(fmt.Sprintf("bond for source %d: level payment factor is not finite (term %d, rate %.6f)", b.sourceID, n, r))
	}

	b.issued = true
	b.issueWeek = week
	b.firstPaymentWeek = week + constructionTime
	b.scaledTermYears = n
	b.payment = b.principal.Mul(decimal.NewFromFloat(factor))
	b.basePayment = b.payment
}

// SetDebtService rescales the level payment of a VariableInterest bond by
// the issuer's current allocated treatment fraction. No-op for Fixed bonds.
func (b *Bond) SetDebtService(allocatedTreatmentFraction float64) {
	if b.kind != VariableInterest || !b.issued {
		return
	}
	if math.IsNaN(allocatedTreatmentFraction) {
		panic(fmt.Sprintf("bond for source %d: NaN allocated treatment fraction", b.sourceID))
	}
	b.payment = b.basePayment.Mul(decimal.NewFromFloat(allocatedTreatmentFraction))
}

// DebtService returns the annual payment due in week: the level service on
// the first week of each fiscal year inside the repayment window, zero
// otherwise.
func (b *Bond) DebtService(week int) float64 {
	if !b.issued || week < b.firstPaymentWeek {
		return 0
	}
	if week >= b.firstPaymentWeek+b.scaledTermYears*constants.WeeksInYearRound {
		return 0
	}
	if constants.WeekOfYear(week) != 0 {
		return 0
	}
	ds := b.payment.InexactFloat64()
	if math.IsNaN(ds) {
		panic(fmt.Sprintf("bond for source %d: NaN debt service in week %d", b.sourceID, week))
	}
	return ds
}

// PresentValueDebtService returns this week's payment discounted back to
// the bond's issuance, or zero in weeks with no payment due.
func (b *Bond) PresentValueDebtService(week int, discountRate float64) float64 {
	ds := b.DebtService(week)
	if ds == 0 {
		return 0
	}
	years := float64(week-b.issueWeek) / constants.WeeksInYear
	return ds / math.Pow(1+discountRate, years)
}

// NetPresentValueAtIssuance discounts the whole scheduled service stream to
// the issuance week. Only meaningful once issued.
func (b *Bond) NetPresentValueAtIssuance(discountRate float64, week int) float64 {
	if !b.issued {
		return 0
	}
	offsetYears := float64(b.firstPaymentWeek-b.issueWeek) / constants.WeeksInYear
	pay := b.payment.InexactFloat64()
	npv := 0.0
	for y := 0; y < b.scaledTermYears; y++ {
		npv += pay / math.Pow(1+discountRate, offsetYears+float64(y))
	}
	return npv
}

// PrincipalPaid estimates the service paid through week as the level
// payment times the number of whole 52-week years elapsed since the first
// payment week (capped at the term), used to adjust a sequenced successor
// project's capital cost.
func (b *Bond) PrincipalPaid(week int) float64 {
	if !b.issued || week < b.firstPaymentWeek {
		return 0
	}
	years := (week - b.firstPaymentWeek) / constants.WeeksInYearRound
	if years > b.scaledTermYears {
		years = b.scaledTermYears
	}
	return b.payment.Mul(decimal.NewFromInt(int64(years))).InexactFloat64()
}
