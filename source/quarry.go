package source

import (
	"math"

	"github.com/maseology/goHydro/hru"
)

// Quarry is a reservoir whose inflow is capped by a diversion structure:
// only up to maxDiversion per week can be routed into storage, the rest
// bypasses to the outflow. A quarry starts empty when it comes online.
type Quarry struct {
	base
	maxDiversion float64
	divertedFlow float64
	evap         EvaporationFunc
	area         AreaFunc
}

func NewQuarry(id int, name string, capacity, minEnvOutflow, maxTreatment, maxDiversion, initialVolume float64, online bool, catchmentInflow InflowFunc, evap EvaporationFunc, area AreaFunc, allocations []Allocation) (*Quarry, error) {
	b, err := newBase(id, name, VariantQuarry, capacity, minEnvOutflow, maxTreatment, catchmentInflow, allocations)
	if err != nil {
		return nil, err
	}
	b.online = online
	b.availableVolume = initialVolume
	return &Quarry{base: b, maxDiversion: maxDiversion, evap: evap, area: area}, nil
}

// DivertedFlow returns last week's flow into storage after the diversion cap.
func (q *Quarry) DivertedFlow() float64 { return q.divertedFlow }

func (q *Quarry) ApplyContinuity(week int, upstreamInflow, demandOutflow float64) {
	ci := q.catchmentInflow(week)
	q.recordInflows(upstreamInflow, ci)
	totalInflow := upstreamInflow + ci

	if !q.online {
		q.totalOutflow = totalInflow
		return
	}

	ev := 0.0
	if q.evap != nil && q.area != nil {
		ev = q.evap(week, q.area(q.availableVolume))
	}

	diverted := math.Min(q.maxDiversion, totalInflow-q.minEnvironmentalOutflow)
	if diverted < 0 {
		diverted = 0
	}

	sto := hru.Res{Cap: q.capacity, Sto: q.availableVolume}
	spill := sto.Overflow(diverted - demandOutflow - ev)
	q.availableVolume = sto.Sto
	if spill > 0 {
		diverted -= spill
	}
	q.divertedFlow = diverted
	q.totalOutflow = totalInflow - diverted
}

// SetOnline brings the quarry online with empty storage; it fills gradually
// as diverted inflows arrive.
func (q *Quarry) SetOnline(week int) {
	if q.online {
		return
	}
	q.base.SetOnline(week)
	q.availableVolume = 0
}

func (q *Quarry) AvailableAllocatedVolume(utilityID int) float64 {
	if !q.online {
		return 0
	}
	return q.capacityFraction[utilityID] * q.availableVolume
}

func (q *Quarry) PrioritySourcePotentialVolume(utilityID int) float64 {
	return q.AvailableAllocatedVolume(utilityID)
}

func (q *Quarry) Clone() Source {
	c := *q
	return &c
}
