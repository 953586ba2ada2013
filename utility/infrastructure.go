package utility

import (
	"github.com/bernardoct/Heraclitus/constants"
)

// HandleInfrastructure checks the construction queues against the long-term
// ROF and the past year's average demand, begins at most one project, and
// issues its bond. It returns the triggered source id (or
// constants.NonInitialized) and the mutual-exclusion removals the outer
// loop must broadcast to co-owning utilities.
func (u *Utility) HandleInfrastructure(longTermROF float64, week int) (int, []int) {
	u.longTermROF = longTermROF
	if u.manager == nil {
		return constants.NonInitialized, nil
	}

	pastYearAvgDemand := 0.0
	if week >= constants.WeeksInYearRound && week <= len(u.demandSeries) {
		for w := week - constants.WeeksInYearRound; w < week; w++ {
			pastYearAvgDemand += u.demandSeries[w]
		}
		pastYearAvgDemand /= float64(constants.WeeksInYearRound)
	}

	id, removed := u.manager.Handle(longTermROF, week, pastYearAvgDemand)
	if id != constants.NonInitialized {
		u.issueBond(id, week)
	}
	return id, removed
}

// ForceInfrastructureConstruction begins the given projects regardless of
// triggers (an exogenous policy decision), applying the sequenced-project
// capital-cost adjustment before issuing each bond: a successor whose
// predecessor is already being paid down should not account for the shared
// principal twice.
func (u *Utility) ForceInfrastructureConstruction(week int, ids []int) {
	if u.manager == nil {
		return
	}
	for _, id := range u.manager.ForceConstruction(week, ids) {
		if pred, ok := u.manager.SequencePredecessor(id); ok {
			if pb := u.bonds[pred]; pb != nil && pb.Issued() {
				if nb := u.bonds[id]; nb != nil && !nb.Issued() {
					nb.ReducePrincipal(pb.PrincipalPaid(week))
				}
			}
		}
		u.issueBond(id, week)
	}
}

// issueBond issues the bond template backing the source, once. Re-triggering
// the same project in the same week is a no-op.
func (u *Utility) issueBond(id, week int) {
	b := u.bonds[id]
	if b == nil || b.Issued() {
		return
	}
	b.Issue(week, u.manager.ConstructionTime(id), u.bondTermMultiplier, u.bondRateMultiplier)
	u.issuedBonds = append(u.issuedBonds, b)
	u.infraNetPresentCost += b.NetPresentValueAtIssuance(u.infraDiscountRate, week)
}

// BringInfrastructureOnline transitions every project whose construction
// has finished by week, updating the draw partitions and totals.
func (u *Utility) BringInfrastructureOnline(week int) {
	if u.manager == nil {
		return
	}
	u.manager.BringOnline(week, func(id int) {
		u.SetWaterSourceOnline(id, week)
	})
}

// RemoveSourcesFromQueues deletes the ids from both construction queues,
// used to broadcast another utility's mutual-exclusion removals.
func (u *Utility) RemoveSourcesFromQueues(ids []int) {
	if u.manager != nil {
		u.manager.RemoveSources(ids)
	}
}

// InfraBuiltLastWeek returns the source ids brought online by the latest
// BringInfrastructureOnline call.
func (u *Utility) InfraBuiltLastWeek() []int {
	if u.manager == nil {
		return nil
	}
	return u.manager.BuiltLastWeek()
}

// ROFInfraOrder and DemandInfraOrder expose the remaining construction
// queues.
func (u *Utility) ROFInfraOrder() []int {
	if u.manager == nil {
		return nil
	}
	return u.manager.ROFOrder()
}

func (u *Utility) DemandInfraOrder() []int {
	if u.manager == nil {
		return nil
	}
	return u.manager.DemandOrder()
}
