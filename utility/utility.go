// Package utility implements the water-provider entity: demand splitting
// across owned sources, contingency-fund accounting, wastewater return
// routing, demand projection, and infrastructure triggering with bond
// issuance. A Utility never owns its sources; it holds ids into the
// caller-owned source arena.
package utility

import (
	"fmt"
	"math"

	"github.com/bernardoct/Heraclitus/bond"
	"github.com/bernardoct/Heraclitus/constants"
	"github.com/bernardoct/Heraclitus/infra"
	"github.com/bernardoct/Heraclitus/source"
	"github.com/bernardoct/Heraclitus/wwtp"
)

// BondTerms configures the bond template backing one infrastructure option.
type BondTerms struct {
	Kind      bond.Kind
	Principal float64
	TermYears int
	Rate      float64
}

// ProjectionParams controls the demand re-projection used for long-term ROF.
type ProjectionParams struct {
	ForecastLength        int
	HistoricalPeriod      int
	ReprojectionFrequency int
}

// Params is the construction-time input boundary for one utility, as handed
// in by the (external) config loader.
type Params struct {
	ID   int
	Name string

	Demands                 [][]float64 // [realization][week]
	AnnualDemandProjections []float64
	MonthlyDemandFractions  [][]float64 // 12 x n_tiers
	MonthlyWaterPrices      [][]float64 // 12 x n_tiers

	PercentContingencyFundContribution float64
	ContingencyFundCap                 float64
	DemandBuffer                       float64
	WwtpRule                           wwtp.DischargeRule

	// Infrastructure program; all empty for a utility with nothing to build.
	ROFInfraOrder        []int
	DemandInfraOrder     []int
	InfraTriggers        map[int]float64
	InfraIfBuiltRemove   [][]int
	ConstructionTimes    map[int]int
	SequencePredecessors map[int]int
	Bonds                map[int]BondTerms
	InfraDiscountRate    float64

	Projection ProjectionParams
}

// Utility is one water provider.
type Utility struct {
	id   int
	name string

	demandsAllRealizations    [][]float64
	demandSeries              []float64
	weeklyPeakingFactor       []float64 // 53
	annualAverageWeeklyDemand []float64
	annualDemandProjections   []float64
	weeklyAveragePrice        []float64 // 53
	futureDemandEstimate      float64
	currentYearRecordedDemand float64
	projection                ProjectionParams

	percentContribution float64
	contingencyFundCap  float64
	demandBuffer        float64
	wwtpRule            wwtp.DischargeRule

	sources         []source.Source // borrowed arena view
	owned           map[int]bool
	priorityDraw    []int
	nonPriorityDraw []int

	totalStorageCapacity   float64
	totalTreatmentCapacity float64
	totalAvailableVolume   float64
	totalStoredVolume      float64
	netStreamInflow        float64

	contingencyFund       float64
	grossRevenue          float64
	droughtMitigationCost float64
	insurancePayout       float64
	insurancePurchase     float64
	fundContribution      float64
	currentDebtPayment    float64
	currentPVDebtPayment  float64
	infraNetPresentCost   float64

	unrestrictedDemand   float64
	restrictedDemand     float64
	unfulfilledDemand    float64
	demandMultiplier     float64
	demandOffset         float64
	demandOffsetThisWeek float64
	offsetRate           float64
	restrictedPrice      float64
	wasteWaterDischarge  float64

	shortTermStorageROF   float64
	shortTermTreatmentROF float64
	shortTermROF          float64
	longTermStorageROF    float64
	longTermTreatmentROF  float64
	longTermROF           float64

	usedForRealization bool

	manager            *infra.Manager
	bonds              map[int]*bond.Bond
	issuedBonds        []*bond.Bond
	infraDiscountRate  float64
	bondTermMultiplier float64
	bondRateMultiplier float64
}

// New builds a utility, running the fatal configuration validations: the
// price and demand-fraction tables must be 12 rows with matching tiers, the
// demand matrix must be non-empty, and an infrastructure-enabled utility
// needs at least one non-empty queue and a positive discount rate.
func New(p Params) (*Utility, error) {
	if len(p.Demands) == 0 || len(p.Demands[0]) == 0 {
		return nil, fmt.Errorf("utility %d (%s): empty demand matrix", p.ID, p.Name)
	}
	price, err := weeklyAveragePrices(p.ID, p.MonthlyDemandFractions, p.MonthlyWaterPrices)
	if err != nil {
		return nil, err
	}

	u := &Utility{
		id:                      p.ID,
		name:                    p.Name,
		demandsAllRealizations:  p.Demands,
		annualDemandProjections: append([]float64(nil), p.AnnualDemandProjections...),
		weeklyAveragePrice:      price,
		projection:              p.Projection,
		percentContribution:     p.PercentContingencyFundContribution,
		contingencyFundCap:      p.ContingencyFundCap,
		demandBuffer:            p.DemandBuffer,
		wwtpRule:                p.WwtpRule,
		owned:                   make(map[int]bool),
		demandMultiplier:        1,
		restrictedPrice:         constants.None,
		bondTermMultiplier:      1,
		bondRateMultiplier:      1,
		infraDiscountRate:       p.InfraDiscountRate,
		usedForRealization:      true,
	}

	infraEnabled := len(p.ROFInfraOrder) > 0 || len(p.DemandInfraOrder) > 0 || len(p.InfraTriggers) > 0
	if infraEnabled {
		if len(p.ROFInfraOrder) == 0 && len(p.DemandInfraOrder) == 0 {
			return nil, fmt.Errorf("utility %d (%s): infrastructure triggers configured but both construction queues are empty", p.ID, p.Name)
		}
		if p.InfraDiscountRate <= 0 {
			return nil, fmt.Errorf("utility %d (%s): infrastructure discount rate must be positive, got %v", p.ID, p.Name, p.InfraDiscountRate)
		}
		m, err := infra.NewManager(p.ID, p.ROFInfraOrder, p.DemandInfraOrder, p.InfraTriggers, p.ConstructionTimes, p.InfraIfBuiltRemove, p.SequencePredecessors)
		if err != nil {
			return nil, err
		}
		u.manager = m
		u.bonds = make(map[int]*bond.Bond, len(p.Bonds))
		for id, t := range p.Bonds {
			u.bonds[id] = bond.New(id, t.Kind, t.Principal, t.TermYears, t.Rate)
		}
	}

	if p.Projection.ForecastLength > 0 {
		nYears := len(p.Demands[0]) / constants.WeeksInYearRound
		if nYears+p.Projection.ForecastLength >= len(p.AnnualDemandProjections) {
			return nil, fmt.Errorf("utility %d (%s): %d-year forecast over a %d-year realization exceeds the %d-entry projection vector", p.ID, p.Name, p.Projection.ForecastLength, nYears, len(p.AnnualDemandProjections))
		}
	}

	return u, nil
}

func weeklyAveragePrices(id int, fractions, prices [][]float64) ([]float64, error) {
	if len(fractions) != constants.NumberOfMonths {
		return nil, fmt.Errorf("utility %d: demand-fraction table has %d rows, want %d", id, len(fractions), constants.NumberOfMonths)
	}
	if len(prices) != constants.NumberOfMonths {
		return nil, fmt.Errorf("utility %d: water-price table has %d rows, want %d", id, len(prices), constants.NumberOfMonths)
	}
	if len(fractions[0]) != len(prices[0]) {
		return nil, fmt.Errorf("utility %d: %d demand-fraction tiers vs %d price tiers", id, len(fractions[0]), len(prices[0]))
	}

	monthly := make([]float64, constants.NumberOfMonths)
	for m := 0; m < constants.NumberOfMonths; m++ {
		for t := range prices[m] {
			monthly[m] += fractions[m][t] * prices[m][t]
		}
	}
	weekly := make([]float64, constants.WeeksInYearRound+1)
	for w := range weekly {
		m := int(float64(w) / constants.WeeksInMonth)
		if m >= constants.NumberOfMonths {
			m = constants.NumberOfMonths - 1
		}
		weekly[w] = monthly[m] / 1e6 // dollars per unit volume to dollars per million units
	}
	return weekly, nil
}

// SetRealization resolves the demand series for realization r, applying the
// RDM deep-uncertainty factors: rdm[0] scales demand around its week-0
// level, rdm[1] and rdm[2] scale bond terms and rates, rdm[3] scales the
// infrastructure discount rate. Indices beyond 3 are reserved.
func (u *Utility) SetRealization(r int, rdmFactors []float64) error {
	if r < 0 || r >= len(u.demandsAllRealizations) {
		return fmt.Errorf("utility %d (%s): realization %d outside [0, %d)", u.id, u.name, r, len(u.demandsAllRealizations))
	}
	if len(rdmFactors) < 4 {
		return fmt.Errorf("utility %d (%s): need at least 4 RDM factors, got %d", u.id, u.name, len(rdmFactors))
	}

	demands := u.demandsAllRealizations[r]
	delta := demands[0] * (1 - rdmFactors[0])
	u.demandSeries = make([]float64, len(demands))
	for w, d := range demands {
		u.demandSeries[w] = d*rdmFactors[0] + delta
	}

	u.bondTermMultiplier = rdmFactors[1]
	u.bondRateMultiplier = rdmFactors[2]
	u.infraDiscountRate *= rdmFactors[3]

	u.weeklyPeakingFactor = weeklyPeakingFactor(demands)
	u.annualAverageWeeklyDemand = annualAverageWeeklyDemand(u.demandSeries)
	return nil
}

// weeklyPeakingFactor derives the 53-entry week-of-year demand multiplier
// from the raw trace: each week's average ratio to its year's mean. A year
// whose mean is zero contributes a flat ratio of 1.
func weeklyPeakingFactor(demands []float64) []float64 {
	out := make([]float64, constants.WeeksInYearRound+1)
	nYears := int(float64(len(demands))/constants.WeeksInYear) - 1
	if nYears < 1 {
		for w := range out {
			out[w] = 1
		}
		return out
	}
	for y := 0; y < nYears; y++ {
		start := int(float64(y) * constants.WeeksInYear)
		end := int(float64(y+1) * constants.WeeksInYear)
		avg := 0.0
		for _, d := range demands[start:end] {
			avg += d
		}
		avg /= float64(end - start)
		for w := range out {
			ratio := 1.0
			if avg > 0 {
				ratio = demands[start+w] / avg
			}
			out[w] += ratio / float64(nYears)
		}
	}
	return out
}

func annualAverageWeeklyDemand(demands []float64) []float64 {
	nYears := len(demands) / constants.WeeksInYearRound
	out := make([]float64, nYears)
	for y := 0; y < nYears; y++ {
		sum := 0.0
		for _, d := range demands[y*constants.WeeksInYearRound : (y+1)*constants.WeeksInYearRound] {
			sum += d
		}
		out[y] = sum / float64(constants.WeeksInYearRound)
	}
	return out
}

// AttachSourceArena hands the utility its borrowed view of the shared
// source arena. The utility never mutates arena membership.
func (u *Utility) AttachSourceArena(sources []source.Source) {
	u.sources = sources
}

// AddWaterSource registers ownership of a source. Duplicate attachment is a
// fatal configuration error. An online source with owned treatment capacity
// (or any intake variant) joins the draw partitions immediately.
func (u *Utility) AddWaterSource(s source.Source) error {
	if u.owned[s.ID()] {
		return fmt.Errorf("utility %d (%s): water source %d attached twice", u.id, u.name, s.ID())
	}
	u.owned[s.ID()] = true

	if s.Online() && (s.AllocatedTreatmentCapacity(u.id) > 0 ||
		s.Variant() == source.VariantIntake || s.Variant() == source.VariantAllocatedIntake) {
		u.addToOnlineLists(s)
	}
	return nil
}

// addToOnlineLists partitions the source by draw behavior and folds its
// allocations into the utility totals.
func (u *Utility) addToOnlineLists(s source.Source) {
	switch s.Variant() {
	case source.VariantIntake, source.VariantAllocatedIntake, source.VariantReuse:
		u.priorityDraw = append(u.priorityDraw, s.ID())
	default:
		u.nonPriorityDraw = append(u.nonPriorityDraw, s.ID())
	}
	u.totalStorageCapacity += s.AllocatedCapacity(u.id)
	u.totalTreatmentCapacity += s.AllocatedTreatmentCapacity(u.id)
	u.totalAvailableVolume += s.AvailableAllocatedVolume(u.id)
	u.totalStoredVolume += s.AvailableAllocatedVolume(u.id)
}

// SetWaterSourceOnline transitions an owned source online and adds it to
// the draw partitions.
func (u *Utility) SetWaterSourceOnline(id, week int) {
	s := u.sources[id]
	s.SetOnline(week)
	u.addToOnlineLists(s)
}

// UpdateTotalAvailableVolume recomputes the utility totals from the current
// source allocations, after the week's continuity step.
func (u *Utility) UpdateTotalAvailableVolume() {
	u.totalAvailableVolume = 0
	u.totalStoredVolume = 0
	u.netStreamInflow = 0

	for _, ws := range u.priorityDraw {
		s := u.sources[ws]
		u.totalAvailableVolume += math.Max(constants.Nearzero, s.AvailableAllocatedVolume(u.id))
		u.totalStoredVolume += math.Max(constants.Nearzero, s.PrioritySourcePotentialVolume(u.id))
		u.netStreamInflow += s.AllocatedInflow(u.id)
	}
	for _, ws := range u.nonPriorityDraw {
		s := u.sources[ws]
		v := math.Max(constants.Nearzero, s.AvailableAllocatedVolume(u.id))
		u.totalAvailableVolume += v
		u.totalStoredVolume += v
		u.netStreamInflow += s.AllocatedInflow(u.id)
	}
}

// CloneForROF returns the prototype copy used by the ROF sub-simulator: all
// numeric state carried over, financial accounting disabled, and the owned
// source lists emptied so the nested continuity model re-attaches its own
// cloned arena. No caller ever observes the half-wired value: the nested
// model's constructor performs the re-attachment before stepping.
func (u *Utility) CloneForROF() *Utility {
	c := *u
	c.usedForRealization = false
	c.sources = nil
	c.owned = make(map[int]bool)
	c.priorityDraw = nil
	c.nonPriorityDraw = nil
	c.totalStorageCapacity = 0
	c.totalTreatmentCapacity = 0
	c.totalAvailableVolume = 0
	c.totalStoredVolume = 0
	if u.manager != nil {
		c.manager = u.manager.Clone()
	}
	return &c
}

func clampFund(v, cap float64) float64 {
	return math.Max(math.Min(v, cap), 0)
}

// ---- policy-facing setters ----

func (u *Utility) SetDemandMultiplier(m float64) { u.demandMultiplier = m }

// SetRestrictedPrice sets this week's surcharge price; it resets to unset
// after the fund update.
func (u *Utility) SetRestrictedPrice(p float64) { u.restrictedPrice = p }

// SetDemandOffset accumulates transfer offsets; a utility with more than
// one transfer agreement sees them add up within a week.
func (u *Utility) SetDemandOffset(offset, ratePerVolume float64) {
	u.demandOffset += offset
	u.offsetRate = ratePerVolume
}

func (u *Utility) AddInsurancePayout(v float64) {
	u.contingencyFund = clampFund(u.contingencyFund+v, u.contingencyFundCap)
	u.insurancePayout = v
}

func (u *Utility) PurchaseInsurance(price float64) {
	u.contingencyFund = clampFund(u.contingencyFund-price, u.contingencyFundCap)
	u.insurancePurchase = price
}

func (u *Utility) SetShortTermRisksOfFailure(storage, treatment float64) {
	u.shortTermStorageROF = storage
	u.shortTermTreatmentROF = treatment
	u.shortTermROF = math.Max(storage, treatment)
}

func (u *Utility) SetLongTermRisksOfFailure(storage, treatment float64) {
	u.longTermStorageROF = storage
	u.longTermTreatmentROF = treatment
}

// ---- getters read by policies and the output boundary ----

func (u *Utility) ID() int      { return u.id }
func (u *Utility) Name() string { return u.name }

func (u *Utility) RiskOfFailure() float64         { return u.shortTermROF }
func (u *Utility) StorageROF() float64            { return u.shortTermStorageROF }
func (u *Utility) TreatmentROF() float64          { return u.shortTermTreatmentROF }
func (u *Utility) LongTermROF() float64           { return u.longTermROF }
func (u *Utility) LongTermStorageROF() float64    { return u.longTermStorageROF }
func (u *Utility) LongTermTreatmentROF() float64  { return u.longTermTreatmentROF }
func (u *Utility) UnrestrictedDemand() float64    { return u.unrestrictedDemand }
func (u *Utility) RestrictedDemand() float64      { return u.restrictedDemand }
func (u *Utility) UnfulfilledDemand() float64     { return u.unfulfilledDemand }
func (u *Utility) DemandMultiplier() float64      { return u.demandMultiplier }
func (u *Utility) GrossRevenue() float64          { return u.grossRevenue }
func (u *Utility) ContingencyFund() float64       { return u.contingencyFund }
func (u *Utility) ContingencyFundCap() float64    { return u.contingencyFundCap }
func (u *Utility) FundContribution() float64      { return u.fundContribution }
func (u *Utility) DroughtMitigationCost() float64 { return u.droughtMitigationCost }
func (u *Utility) InsurancePayout() float64       { return u.insurancePayout }
func (u *Utility) InsurancePurchase() float64     { return u.insurancePurchase }
func (u *Utility) CurrentDebtPayment() float64    { return u.currentDebtPayment }
func (u *Utility) CurrentPVDebtPayment() float64  { return u.currentPVDebtPayment }
func (u *Utility) InfraNetPresentCost() float64   { return u.infraNetPresentCost }
func (u *Utility) TotalStorageCapacity() float64  { return u.totalStorageCapacity }
func (u *Utility) TotalTreatmentCapacity() float64 {
	return u.totalTreatmentCapacity
}
func (u *Utility) TotalAvailableVolume() float64 { return u.totalAvailableVolume }
func (u *Utility) TotalStoredVolume() float64    { return u.totalStoredVolume }
func (u *Utility) WasteWaterDischarge() float64  { return u.wasteWaterDischarge }
func (u *Utility) NetStreamInflow() float64      { return u.netStreamInflow }
func (u *Utility) FutureDemandEstimate() float64 { return u.futureDemandEstimate }

// StorageToCapacityRatio is the storage failure metric checked against the
// ROF threshold.
func (u *Utility) StorageToCapacityRatio() float64 {
	if u.totalStorageCapacity == 0 {
		return 1
	}
	return u.totalStoredVolume / u.totalStorageCapacity
}

// DemandSeries exposes the resolved per-realization weekly demand trace.
func (u *Utility) DemandSeries() []float64 { return u.demandSeries }

// PriorityDrawSources and NonPriorityDrawSources expose the online draw
// partitions, in draw order.
func (u *Utility) PriorityDrawSources() []int    { return u.priorityDraw }
func (u *Utility) NonPriorityDrawSources() []int { return u.nonPriorityDraw }
