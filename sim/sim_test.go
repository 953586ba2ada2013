package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernardoct/Heraclitus/config"
	"github.com/bernardoct/Heraclitus/constants"
	"github.com/bernardoct/Heraclitus/policy"
	"github.com/bernardoct/Heraclitus/rof"
	"github.com/bernardoct/Heraclitus/sim"
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

func testSystem(t *testing.T, weeklyDemand float64) *config.System {
	t.Helper()
	d := make([]float64, 20*constants.WeeksInYearRound)
	for i := range d {
		d[i] = weeklyDemand
	}
	uc := utility.Params{
		ID: 0, Name: "u",
		Demands:                            [][]float64{d},
		AnnualDemandProjections:            make([]float64, 64),
		MonthlyDemandFractions:             flatTable(1),
		MonthlyWaterPrices:                 flatTable(1),
		PercentContingencyFundContribution: 0.05,
		ContingencyFundCap:                 10,
	}
	alloc := []source.Allocation{{UtilityID: 0, CapacityFraction: 1, TreatmentFraction: 1, InflowFraction: 1}}
	scs := []config.SourceConfig{{
		ID: 0, Name: "lake", Variant: source.VariantReservoir,
		Capacity: 1000, MaxTreatmentCapacity: 1000, InitialVolume: 800, Online: true,
		CatchmentInflow: func(int) float64 { return 60 },
		Allocations:     alloc,
	}}
	sys, err := config.Build(scs, nil, []config.UtilityConfig{uc}, [][]int{{0}})
	require.NoError(t, err)
	return sys
}

func options() sim.Options {
	return sim.Options{
		ROFRealizations:         3,
		ShortTermHorizon:        8,
		LongTermHorizon:         12,
		StorageFailureThreshold: 0.2,
	}
}

func TestRun_EmitsOneRecordPerUtilityPerWeek(t *testing.T) {
	s, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, nil, options())
	require.NoError(t, err)

	records := s.Run(0, 10)
	require.Len(t, records, 10)
	for w, row := range records {
		require.Len(t, row, 1)
		assert.Equal(t, w, row[0].Week)
		assert.Equal(t, 0, row[0].Utility)
	}
}

func TestRun_IdentityRDMReproducesDemandTrace(t *testing.T) {
	s, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, nil, options())
	require.NoError(t, err)

	records := s.Run(0, 10)
	for _, row := range records {
		// Constant trace, identity factors, flat peaking: the unrestricted
		// demand is the raw series value.
		assert.InDelta(t, 50, row[0].UnrestrictedDemand, 1e-9)
		assert.InDelta(t, 50, row[0].RestrictedDemand, 1e-9)
		assert.Equal(t, 0.0, row[0].UnfulfilledDemand)
	}
}

func TestRun_FundStaysWithinBounds(t *testing.T) {
	s, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, nil, options())
	require.NoError(t, err)

	for _, row := range s.Run(0, 30) {
		assert.GreaterOrEqual(t, row[0].ContingencyFund, 0.0)
		assert.LessOrEqual(t, row[0].ContingencyFund, 10.0)
	}
}

func TestRun_ROFsPopulated(t *testing.T) {
	// Starting from a mostly drained reservoir, the nested ROF runs must
	// still report risks within [0, 1].
	sys := testSystem(t, 50)
	sys.Sources[0].(*source.Reservoir).ApplyContinuity(0, 0, 650) // drain most storage
	s, err := sim.New(sys, 0, []float64{1, 1, 1, 1}, nil, options())
	require.NoError(t, err)

	records := s.Run(0, 3)
	last := records[len(records)-1][0]
	assert.GreaterOrEqual(t, last.RiskOfFailure, 0.0)
	assert.LessOrEqual(t, last.RiskOfFailure, 1.0)
	assert.GreaterOrEqual(t, last.StorageROF, 0.0)
}

type restrictor struct{}

func (restrictor) Decide(week int, u *utility.Utility, shortTerm, longTerm rof.Result) {
	u.SetDemandMultiplier(0.8)
}

func TestRun_PolicyHookDrivesRestrictions(t *testing.T) {
	s, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, policy.Noop{}, options())
	require.NoError(t, err)
	base := s.Run(0, 5)

	s2, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, restrictor{}, options())
	require.NoError(t, err)
	restricted := s2.Run(0, 5)

	assert.InDelta(t, 50, base[4][0].RestrictedDemand, 1e-9)
	assert.InDelta(t, 40, restricted[4][0].RestrictedDemand, 1e-9, "20% restriction bites the split")
	assert.Greater(t, restricted[4][0].DroughtMitigationCost, 0.0, "lost sales surface as mitigation cost")
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	a, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, nil, options())
	require.NoError(t, err)
	b, err := sim.New(testSystem(t, 50), 0, []float64{1, 1, 1, 1}, nil, options())
	require.NoError(t, err)

	assert.Equal(t, a.Run(0, 20), b.Run(0, 20))
}
