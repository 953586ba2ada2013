package rof_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernardoct/Heraclitus/constants"
	"github.com/bernardoct/Heraclitus/graph"
	"github.com/bernardoct/Heraclitus/rof"
	"github.com/bernardoct/Heraclitus/source"
	"github.com/bernardoct/Heraclitus/utility"
)

func flatTable(v float64) [][]float64 {
	tbl := make([][]float64, constants.NumberOfMonths)
	for i := range tbl {
		tbl[i] = []float64{v}
	}
	return tbl
}

// fixture builds a one-reservoir, one-utility system with a long constant
// demand trace so nested replays can index weeks well past the outer week.
func fixture(t *testing.T, initialVolume, weeklyDemand float64) ([]source.Source, []*utility.Utility, *graph.SourceGraph, [][]int) {
	t.Helper()
	d := make([]float64, 20*constants.WeeksInYearRound)
	for i := range d {
		d[i] = weeklyDemand
	}
	u, err := utility.New(utility.Params{
		ID: 0, Name: "u",
		Demands:                 [][]float64{d},
		AnnualDemandProjections: make([]float64, 64),
		MonthlyDemandFractions:  flatTable(1),
		MonthlyWaterPrices:      flatTable(1),
		ContingencyFundCap:      10,
	})
	require.NoError(t, err)
	require.NoError(t, u.SetRealization(0, []float64{1, 1, 1, 1}))

	r, err := source.NewReservoir(0, "lake", 100, 0, 100, initialVolume, true, func(int) float64 { return 0 },
		nil, nil, []source.Allocation{{UtilityID: 0, CapacityFraction: 1, TreatmentFraction: 1, InflowFraction: 1}})
	require.NoError(t, err)

	g, err := graph.New([]int{0}, nil)
	require.NoError(t, err)

	return []source.Source{r}, []*utility.Utility{u}, g, [][]int{{0}}
}

func TestRun_EmptyReservoirFailsEveryWeek(t *testing.T) {
	sources, utilities, g, owners := fixture(t, 1, 0)
	m := rof.New(g, owners, 5, 10, 0.2, false)

	res := m.Run(0, sources, utilities)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].StorageROF, 1e-9, "storage sits below the threshold the whole horizon")
	assert.Equal(t, 0.0, res[0].TreatmentROF)
	assert.Equal(t, res[0].StorageROF, res[0].ROF, "overall ROF is the worse component")
}

func TestRun_FullReservoirNeverFails(t *testing.T) {
	sources, utilities, g, owners := fixture(t, 95, 0)
	m := rof.New(g, owners, 5, 10, 0.2, false)

	res := m.Run(0, sources, utilities)
	assert.Equal(t, 0.0, res[0].ROF)
}

func TestRun_DoesNotTouchLiveState(t *testing.T) {
	sources, utilities, g, owners := fixture(t, 95, 5)
	m := rof.New(g, owners, 5, 10, 0.2, false)

	before := sources[0].AvailableVolume()
	fund := utilities[0].ContingencyFund()
	m.Run(0, sources, utilities)

	assert.Equal(t, before, sources[0].AvailableVolume())
	assert.Equal(t, fund, utilities[0].ContingencyFund())
}

func TestRun_Deterministic(t *testing.T) {
	sources, utilities, g, owners := fixture(t, 40, 5)
	m := rof.New(g, owners, 8, 26, 0.2, false)

	a := m.Run(0, sources, utilities)
	b := m.Run(0, sources, utilities)
	assert.Equal(t, a, b, "fan-out across nested realizations must not perturb results")
}

func TestRun_TreatmentFailureCountsDemandOverCapacity(t *testing.T) {
	sources, utilities, g, owners := fixture(t, 95, 150)
	m := rof.New(g, owners, 3, 10, 0.0001, false)

	res := m.Run(0, sources, utilities)
	assert.InDelta(t, 1.0, res[0].TreatmentROF, 1e-9, "demand exceeds the 100-unit treatment capacity every week")
}
