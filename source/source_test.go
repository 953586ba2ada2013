package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernardoct/Heraclitus/source"
)

func constInflow(v float64) source.InflowFunc {
	return func(int) float64 { return v }
}

func soleOwner(treatmentFraction float64) []source.Allocation {
	return []source.Allocation{{UtilityID: 0, CapacityFraction: 1, TreatmentFraction: treatmentFraction, InflowFraction: 1}}
}

func TestReservoir_WeeklyMassBalance(t *testing.T) {
	// Capacity 100, start 50, catchment 10/week, environmental release 2,
	// no evaporation, no demand.
	r, err := source.NewReservoir(0, "falls", 100, 2, 0, 50, true, constInflow(10), nil, nil, soleOwner(1))
	require.NoError(t, err)

	r.ApplyContinuity(0, 0, 0)
	assert.InDelta(t, 58, r.AvailableVolume(), 1e-9)
	assert.InDelta(t, 2, r.TotalOutflow(), 1e-9)

	outflows := r.TotalOutflow()
	for w := 1; w < 10; w++ {
		r.ApplyContinuity(w, 0, 0)
		outflows += r.TotalOutflow()
	}
	assert.InDelta(t, 100, r.AvailableVolume(), 1e-9, "storage clamps at capacity")

	// Mass balance closure over the 10 weeks: everything that entered
	// either stays stored or left through the outlet.
	assert.InDelta(t, 50+10*10, r.AvailableVolume()+outflows, 1e-9)
}

func TestReservoir_DemandAndClampAtZero(t *testing.T) {
	r, err := source.NewReservoir(0, "falls", 100, 0, 0, 5, true, constInflow(0), nil, nil, soleOwner(1))
	require.NoError(t, err)

	r.ApplyContinuity(0, 0, 20) // draw beyond storage
	assert.Equal(t, 0.0, r.AvailableVolume())
	assert.Equal(t, 0.0, r.TotalOutflow())
}

func TestReservoir_OfflineIsTransparent(t *testing.T) {
	r, err := source.NewReservoir(0, "planned", 100, 2, 0, 30, false, constInflow(10), nil, nil, soleOwner(1))
	require.NoError(t, err)

	r.ApplyContinuity(0, 7, 0)
	assert.InDelta(t, 17, r.TotalOutflow(), 1e-9, "inflows pass straight through")
	assert.InDelta(t, 30, r.AvailableVolume(), 1e-9, "storage untouched")
	assert.Equal(t, 0.0, r.AvailableAllocatedVolume(0), "offline source yields nothing")
}

func TestReservoir_EvaporationDrawsOnStorage(t *testing.T) {
	evap := func(week int, area float64) float64 { return 0.1 * area }
	area := func(volume float64) float64 { return volume / 10 }
	r, err := source.NewReservoir(0, "shallow", 100, 0, 0, 50, true, constInflow(0), evap, area, soleOwner(1))
	require.NoError(t, err)

	r.ApplyContinuity(0, 0, 0)
	assert.InDelta(t, 49.5, r.AvailableVolume(), 1e-9)
}

func TestQuarry_DiversionCapBypassesStorage(t *testing.T) {
	q, err := source.NewQuarry(0, "pit", 100, 2, 0, 5, 10, true, constInflow(20), nil, nil, soleOwner(1))
	require.NoError(t, err)

	q.ApplyContinuity(0, 0, 0)
	assert.InDelta(t, 15, q.AvailableVolume(), 1e-9, "only the diverted 5 enters storage")
	assert.InDelta(t, 5, q.DivertedFlow(), 1e-9)
	assert.InDelta(t, 15, q.TotalOutflow(), 1e-9, "excess bypasses to the outlet")
}

func TestQuarry_StartsEmptyOnOnline(t *testing.T) {
	q, err := source.NewQuarry(0, "pit", 100, 0, 0, 5, 40, false, constInflow(0), nil, nil, soleOwner(1))
	require.NoError(t, err)

	q.SetOnline(10)
	assert.True(t, q.Online())
	assert.Equal(t, 0.0, q.AvailableVolume(), "quarry fills gradually from empty")
}

func TestIntake_AvailableCappedByTreatment(t *testing.T) {
	in, err := source.NewIntake(0, "river", 0, 8, true, constInflow(20), soleOwner(1))
	require.NoError(t, err)

	in.ApplyContinuity(0, 0, 0)
	assert.InDelta(t, 8, in.AvailableAllocatedVolume(0), 1e-9, "treatment capacity caps the inflow share")

	in.ApplyContinuity(1, 0, 5)
	assert.InDelta(t, 15, in.PrioritySourcePotentialVolume(0), 1e-9, "potential volume is post-demand")
	assert.InDelta(t, 15, in.TotalOutflow(), 1e-9)
}

func TestAllocatedIntake_NormalizesTreatmentFraction(t *testing.T) {
	allocs := []source.Allocation{
		{UtilityID: 0, CapacityFraction: 0.3, TreatmentFraction: 0.3, InflowFraction: 0.3},
		{UtilityID: 1, CapacityFraction: 0.3, TreatmentFraction: 0.1, InflowFraction: 0.3},
	}
	ai, err := source.NewAllocatedIntake(0, "joint-wtp", 0, 10, true, constInflow(0), allocs)
	require.NoError(t, err)

	// 0.3 of 0.4 allocated: the joint plant splits debt service over what
	// is actually taken up, not over nominal capacity.
	assert.InDelta(t, 0.75, ai.AllocatedTreatmentFraction(0), 1e-9)
	assert.InDelta(t, 0.25, ai.AllocatedTreatmentFraction(1), 1e-9)
}

func TestReuse_YieldIsTreatmentCapacityNoOutflow(t *testing.T) {
	r, err := source.NewReuse(0, "reclaim", 6, true, nil, soleOwner(1))
	require.NoError(t, err)

	r.ApplyContinuity(0, 3, 0)
	assert.Equal(t, 0.0, r.TotalOutflow())
	assert.InDelta(t, 6, r.AvailableAllocatedVolume(0), 1e-9)
	assert.Equal(t, 0.0, r.PrioritySourcePotentialVolume(0))
}

func TestAllocationFractionsMustNotExceedOne(t *testing.T) {
	allocs := []source.Allocation{
		{UtilityID: 0, CapacityFraction: 0.7},
		{UtilityID: 1, CapacityFraction: 0.5},
	}
	_, err := source.NewReservoir(0, "over", 100, 0, 0, 0, true, constInflow(0), nil, nil, allocs)
	assert.Error(t, err)
}

func TestClone_IsIndependentNumericState(t *testing.T) {
	r, err := source.NewReservoir(0, "falls", 100, 0, 0, 50, true, constInflow(10), nil, nil, soleOwner(1))
	require.NoError(t, err)

	c := r.Clone()
	c.ApplyContinuity(0, 0, 0)
	assert.InDelta(t, 60, c.AvailableVolume(), 1e-9)
	assert.InDelta(t, 50, r.AvailableVolume(), 1e-9, "the live source is untouched")
}
