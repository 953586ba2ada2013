// Package continuity implements the single-week driver over the source
// network: utility demand split, topologically ordered source mass balance,
// utility totals update, and wastewater return routing into next week's
// spillage.
package continuity

import (
	"math"

	"github.com/bernardoct/Heraclitus/constants"
	"github.com/bernardoct/Heraclitus/graph"
	"github.com/bernardoct/Heraclitus/source"
	"github.com/bernardoct/Heraclitus/utility"
)

// Model steps the network one week at a time. It borrows the source arena
// and utilities from the caller; it never owns or copies them.
type Model struct {
	sources   []source.Source
	utilities []*utility.Utility
	g         *graph.SourceGraph

	demands          []float64
	upstreamSpillage []float64
	discharges       []float64 // wastewater carried into next week's balance

	applyBuffer     bool
	applyProjection bool
}

// New wires utilities to their sources and prepares the per-week work
// arrays. sourcesToUtilities[i] lists the source ids owned by utilities[i].
func New(sources []source.Source, utilities []*utility.Utility, g *graph.SourceGraph, sourcesToUtilities [][]int) (*Model, error) {
	m := &Model{
		sources:          sources,
		utilities:        utilities,
		g:                g,
		demands:          make([]float64, len(sources)),
		upstreamSpillage: make([]float64, len(sources)),
		discharges:       make([]float64, len(sources)),
	}
	for i, u := range utilities {
		u.AttachSourceArena(sources)
		for _, ws := range sourcesToUtilities[i] {
			if err := u.AddWaterSource(sources[ws]); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// SetDemandBuffer makes every demand split add the utilities' safety buffer.
func (m *Model) SetDemandBuffer(on bool) { m.applyBuffer = on }

// SetDemandProjection makes every demand split use the projected future
// demand instead of the realized trace (long-term ROF mode).
func (m *Model) SetDemandProjection(on bool) { m.applyProjection = on }

// Utilities returns the borrowed utility views.
func (m *Model) Utilities() []*utility.Utility { return m.utilities }

// Sources returns the borrowed source arena.
func (m *Model) Sources() []source.Source { return m.sources }

// Step runs one week of continuity. rofRealization selects the historical
// year shift for nested ROF reruns; pass -1 for the real simulation (no
// shift). Streamflows are looked up at the shifted week so each ROF
// realization replays a different historical year against today's state.
func (m *Model) Step(week, rofRealization int) {
	for i := range m.demands {
		m.demands[i] = 0
		m.upstreamSpillage[i] = 0
	}

	for _, u := range m.utilities {
		u.SplitDemands(week, m.demands, m.applyBuffer, m.applyProjection)
	}

	effectiveWeek := week - int(math.Round(float64(rofRealization+1)*constants.WeeksInYear))
	for _, i := range m.g.TopologicalOrder() {
		for _, ws := range m.g.Upstream(i) {
			m.upstreamSpillage[i] += m.sources[ws].TotalOutflow()
		}
		m.upstreamSpillage[i] += m.discharges[i]
		m.sources[i].ApplyContinuity(effectiveWeek, m.upstreamSpillage[i], m.demands[i])
	}

	for _, u := range m.utilities {
		u.UpdateTotalAvailableVolume()
	}

	// Route this week's effluent into next week's balance.
	for i := range m.discharges {
		m.discharges[i] = 0
	}
	for _, u := range m.utilities {
		u.CalculateWastewater(week, m.discharges)
	}
}
