// Package rof implements the risk-of-failure sub-simulator: a nested rerun
// of the continuity model over K historically shifted flow years, frozen at
// the outer simulation's current state, counting the fraction of forward
// weeks in which a utility's storage or treatment capacity falls short.
package rof

import (
	"sync"

	"github.com/bernardoct/Heraclitus/continuity"
	"github.com/bernardoct/Heraclitus/graph"
	"github.com/bernardoct/Heraclitus/source"
	"github.com/bernardoct/Heraclitus/utility"
)

// Result carries one utility's failure probabilities over the horizon.
type Result struct {
	StorageROF   float64
	TreatmentROF float64
	// ROF is the overall risk: the worse of the two components.
	ROF float64
}

// Model reruns the continuity model over K shifted historical years.
type Model struct {
	g                  *graph.SourceGraph
	sourcesToUtilities [][]int

	realizations     int
	horizonWeeks     int
	storageThreshold float64
	useProjection    bool
}

// New configures a ROF model. storageThreshold is the storage-to-capacity
// ratio below which a week counts as a storage failure. useProjection makes
// the nested demand splits run on projected instead of realized demand
// (long-term ROF).
func New(g *graph.SourceGraph, sourcesToUtilities [][]int, realizations, horizonWeeks int, storageThreshold float64, useProjection bool) *Model {
	return &Model{
		g:                  g,
		sourcesToUtilities: sourcesToUtilities,
		realizations:       realizations,
		horizonWeeks:       horizonWeeks,
		storageThreshold:   storageThreshold,
		useProjection:      useProjection,
	}
}

// Run computes per-utility ROFs looking forward from week, with sources and
// utilities frozen at their current state. Each of the K nested
// realizations clones the numeric state, replays a different historical
// year, and writes failure counts into its own slot, so the fan-out stays
// deterministic. The clones are discarded afterwards; the live arena is
// never touched.
func (m *Model) Run(week int, sources []source.Source, utilities []*utility.Utility) []Result {
	nu := len(utilities)
	storageFails := make([][]int, m.realizations)
	treatmentFails := make([][]int, m.realizations)

	var wg sync.WaitGroup
	wg.Add(m.realizations)
	for k := 0; k < m.realizations; k++ {
		go func(k int) {
			defer wg.Done()
			storageFails[k], treatmentFails[k] = m.replay(week, k, sources, utilities)
		}(k)
	}
	wg.Wait()

	totalWeeks := float64(m.realizations * m.horizonWeeks)
	out := make([]Result, nu)
	for i := range out {
		s, t := 0, 0
		for k := 0; k < m.realizations; k++ {
			s += storageFails[k][i]
			t += treatmentFails[k][i]
		}
		r := Result{
			StorageROF:   float64(s) / totalWeeks,
			TreatmentROF: float64(t) / totalWeeks,
		}
		r.ROF = r.StorageROF
		if r.TreatmentROF > r.ROF {
			r.ROF = r.TreatmentROF
		}
		out[i] = r
	}
	return out
}

// replay clones the frozen state and steps one nested realization over the
// horizon, counting failure weeks per utility.
func (m *Model) replay(week, rofRealization int, sources []source.Source, utilities []*utility.Utility) (storageFails, treatmentFails []int) {
	cs := make([]source.Source, len(sources))
	for i, s := range sources {
		if s != nil {
			cs[i] = s.Clone()
		}
	}
	cu := make([]*utility.Utility, len(utilities))
	for i, u := range utilities {
		cu[i] = u.CloneForROF()
	}

	cm, err := continuity.New(cs, cu, m.g, m.sourcesToUtilities)
	if err != nil {
		// The live wiring already validated; a clone can only fail the
		// same way if state was corrupted mid-realization.
		panic(err)
	}
	cm.SetDemandProjection(m.useProjection)

	storageFails = make([]int, len(utilities))
	treatmentFails = make([]int, len(utilities))
	for w := week; w < week+m.horizonWeeks; w++ {
		cm.Step(w, rofRealization)
		for i, u := range cu {
			if u.StorageToCapacityRatio() < m.storageThreshold {
				storageFails[i]++
			}
			if u.UnrestrictedDemand() > u.TotalTreatmentCapacity() {
				treatmentFails[i]++
			}
		}
	}
	return storageFails, treatmentFails
}
