package utility

import (
	"math"

	"github.com/bernardoct/Heraclitus/constants"
)

// SplitDemands resolves this week's demand and allocates it across the
// utility's online sources, adding each source's draw into demands (indexed
// by source id). Intakes and reuse are drawn first in declaration order;
// reservoirs share the remainder proportionally to available allocated
// volume, with a single repair pass clipping any source pushed past its
// treatment capacity and redistributing the excess.
func (u *Utility) SplitDemands(week int, demands []float64, applyBuffer, applyProjection bool) {
	pf := u.weeklyPeakingFactor[constants.WeekOfYear(week)]
	if applyProjection {
		u.unrestrictedDemand = u.futureDemandEstimate * pf
	} else {
		u.unrestrictedDemand = u.demandSeries[week] * pf
	}
	if applyBuffer {
		u.unrestrictedDemand += u.demandBuffer * pf
	}

	u.restrictedDemand = u.unrestrictedDemand*u.demandMultiplier - u.demandOffset
	u.unfulfilledDemand = math.Max(math.Max(
		u.restrictedDemand-u.totalAvailableVolume,
		u.restrictedDemand-u.totalTreatmentCapacity), 0)
	u.restrictedDemand -= u.unfulfilledDemand
	if u.restrictedDemand < 0 {
		u.restrictedDemand = 0
	}

	// Intakes and reuse first, in declaration order.
	remaining := u.restrictedDemand
	for _, ws := range u.priorityDraw {
		d := math.Min(remaining, u.sources[ws].AvailableAllocatedVolume(u.id))
		demands[ws] += d
		remaining -= d
	}

	// Reservoirs share the remainder proportionally to available volume.
	alloc := make([]float64, len(u.nonPriorityDraw))
	frac := make([]float64, len(u.nonPriorityDraw))
	overAllocated := 0.0
	sumNotOverFrac := 0.0
	notOver := make([]int, 0, len(u.nonPriorityDraw))
	for i, ws := range u.nonPriorityDraw {
		s := u.sources[ws]
		frac[i] = math.Max(constants.Nearzero, s.AvailableAllocatedVolume(u.id)/u.totalAvailableVolume)
		d := remaining * frac[i]
		over := d - s.AllocatedTreatmentCapacity(u.id)
		if over > 0 {
			overAllocated += over
			d -= over
		} else {
			notOver = append(notOver, i)
			sumNotOverFrac += frac[i]
		}
		alloc[i] = d
	}

	// One repair iteration: redistribute the clipped excess among sources
	// with treatment headroom, proportionally to their original fractions.
	if overAllocated > 0 && sumNotOverFrac > 0 {
		for _, i := range notOver {
			alloc[i] += overAllocated * frac[i] / sumNotOverFrac
		}
	}
	for i, ws := range u.nonPriorityDraw {
		demands[ws] += alloc[i]
	}

	if u.usedForRealization {
		u.UpdateFund(u.unrestrictedDemand, u.demandMultiplier, u.demandOffset, u.unfulfilledDemand, week)
	}
}

// CalculateWastewater routes this week's effluent returns: for each
// destination in the discharge rule, the week-of-year fraction of restricted
// demand (transfers included, since offsets reduce the demand split but not
// the water actually used) is added to discharges.
func (u *Utility) CalculateWastewater(week int, discharges []float64) {
	u.wasteWaterDischarge = 0
	wk := constants.WeekOfYear(week)
	for _, id := range u.wwtpRule.SourceIDs() {
		d := (u.restrictedDemand + u.demandOffsetThisWeek) * u.wwtpRule.Fraction(id, wk)
		discharges[id] += d
		u.wasteWaterDischarge += d
	}
}

// CalculateDemandEstimate records the current year's realized average demand
// and refreshes the future demand estimate used by long-term ROF. On
// re-projection years, the projection vector from this year through the next
// re-projection is overwritten with the linear extrapolation of the recent
// realized growth rate.
func (u *Utility) CalculateDemandEstimate(week int, reproject bool) {
	year := int(math.Round(float64(week) / float64(constants.WeeksInYearRound)))
	if year+u.projection.ForecastLength >= len(u.annualDemandProjections) {
		panic("utility " + u.name + ": annual demand projection vector too short for forecast length")
	}
	if year >= len(u.annualAverageWeeklyDemand) {
		year = len(u.annualAverageWeeklyDemand) - 1
	}
	u.currentYearRecordedDemand = u.annualAverageWeeklyDemand[year]

	if year >= u.projection.HistoricalPeriod && reproject &&
		u.projection.ReprojectionFrequency > 0 && year%u.projection.ReprojectionFrequency == 0 {
		growth := (u.annualAverageWeeklyDemand[year] - u.annualAverageWeeklyDemand[year-u.projection.HistoricalPeriod]) /
			float64(u.projection.HistoricalPeriod)
		u.futureDemandEstimate = u.currentYearRecordedDemand + growth*float64(u.projection.ForecastLength)

		i := 0
		for yr := year; yr <= year+u.projection.ReprojectionFrequency && yr < len(u.annualDemandProjections); yr++ {
			u.annualDemandProjections[yr] = u.currentYearRecordedDemand + growth*float64(i)
			i++
		}
	} else {
		u.futureDemandEstimate = u.annualDemandProjections[year+u.projection.ForecastLength]
	}
}

// AnnualDemandProjections exposes the (possibly re-projected) projection
// vector.
func (u *Utility) AnnualDemandProjections() []float64 { return u.annualDemandProjections }
