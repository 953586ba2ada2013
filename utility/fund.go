package utility

import (
	"fmt"
	"math"

	"github.com/bernardoct/Heraclitus/bond"
	"github.com/bernardoct/Heraclitus/constants"
)

// UpdateFund applies the weekly contingency-fund mass balance: the projected
// contribution net of restriction revenue losses and transfer costs, with
// surcharge revenue recouped, clamped into [0, cap]. Losses the fund cannot
// absorb surface as drought-mitigation cost. Debt payments for the week are
// refreshed at the end, variable-interest bonds first rescaling to the
// current allocated treatment fraction.
func (u *Utility) UpdateFund(unrestrictedDemand, demandMultiplier, demandOffset, unfulfilledDemand float64, week int) {
	wk := constants.WeekOfYear(week)

	// Yearly data-collection resets.
	if wk == 0 {
		u.insurancePurchase = 0
	} else if wk == 1 {
		u.infraNetPresentCost = 0
		u.currentDebtPayment = 0
	}

	unrestrictedPrice := u.weeklyAveragePrice[wk]
	currentPrice := unrestrictedPrice
	if u.restrictedPrice != constants.None {
		currentPrice = u.restrictedPrice
	}
	if currentPrice < unrestrictedPrice {
		panic(fmt.Sprintf("utility %d (%s): surcharge price %.9f below unrestricted price %.9f in week %d",
			u.id, u.name, currentPrice, unrestrictedPrice, week))
	}

	projectedContribution := u.percentContribution * unrestrictedDemand * unrestrictedPrice
	u.grossRevenue = u.restrictedDemand * currentPrice

	lostVolume := unrestrictedDemand*(1-demandMultiplier) + unfulfilledDemand
	revenueLosses := lostVolume * unrestrictedPrice
	transferCosts := demandOffset * (u.offsetRate - unrestrictedPrice)
	surchargeRecouped := u.restrictedDemand * (currentPrice - unrestrictedPrice)

	previousFund := u.contingencyFund
	u.contingencyFund = clampFund(
		previousFund+projectedContribution-revenueLosses-transferCosts+surchargeRecouped,
		u.contingencyFundCap)

	u.droughtMitigationCost = math.Max(
		revenueLosses+transferCosts-u.insurancePayout-surchargeRecouped, 0)
	u.fundContribution = math.Min(
		projectedContribution-revenueLosses-transferCosts+surchargeRecouped,
		u.contingencyFundCap-previousFund)

	// Drought-mitigation inputs are week-scoped; the offset is kept aside
	// for wastewater routing before being cleared.
	u.demandOffsetThisWeek = demandOffset
	u.restrictedPrice = constants.None
	u.demandOffset = 0
	u.offsetRate = 0

	u.currentDebtPayment = u.updateCurrentDebtPayment(week)
	u.currentPVDebtPayment = u.updateCurrentPVDebtPayment(week)
}

func (u *Utility) updateCurrentDebtPayment(week int) float64 {
	// Variable debt-service bonds track the issuer's current share of the
	// jointly owned plant.
	for _, b := range u.issuedBonds {
		if b.Kind() == bond.VariableInterest {
			b.SetDebtService(u.sources[b.SourceID()].AllocatedTreatmentFraction(u.id))
		}
	}

	payment := 0.0
	for _, b := range u.issuedBonds {
		payment += b.DebtService(week)
	}
	if math.IsNaN(payment) {
		panic(fmt.Sprintf("utility %d (%s): NaN debt service in week %d", u.id, u.name, week))
	}
	return payment
}

func (u *Utility) updateCurrentPVDebtPayment(week int) float64 {
	payment := 0.0
	for _, b := range u.issuedBonds {
		payment += b.PresentValueDebtService(week, u.infraDiscountRate)
	}
	return payment
}
