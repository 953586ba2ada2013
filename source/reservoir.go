package source

import (
	"math"

	"github.com/maseology/goHydro/hru"
)

// Reservoir is the storage-bearing source variant. Its weekly mass balance
// runs through the same bounded linear-reservoir accumulator used for HRU
// depression storage: storage pushed past [0, capacity] spills the excess.
type Reservoir struct {
	base
	evap EvaporationFunc
	area AreaFunc
}

// NewReservoir builds a reservoir. evap and area may be nil for a
// non-evaporating (or unmonitored) pool.
func NewReservoir(id int, name string, capacity, minEnvOutflow, maxTreatment, initialVolume float64, online bool, catchmentInflow InflowFunc, evap EvaporationFunc, area AreaFunc, allocations []Allocation) (*Reservoir, error) {
	b, err := newBase(id, name, VariantReservoir, capacity, minEnvOutflow, maxTreatment, catchmentInflow, allocations)
	if err != nil {
		return nil, err
	}
	b.online = online
	b.availableVolume = initialVolume
	return &Reservoir{base: b, evap: evap, area: area}, nil
}

// ApplyContinuity runs the weekly reservoir mass balance. An offline
// reservoir is transparent: inflows pass straight through and storage is
// untouched.
func (r *Reservoir) ApplyContinuity(week int, upstreamInflow, demandOutflow float64) {
	ci := r.catchmentInflow(week)
	r.recordInflows(upstreamInflow, ci)

	if !r.online {
		r.totalOutflow = upstreamInflow + ci
		return
	}

	ev := 0.0
	if r.evap != nil && r.area != nil {
		ev = r.evap(week, r.area(r.availableVolume))
	}

	sto := hru.Res{Cap: r.capacity, Sto: r.availableVolume}
	spill := sto.Overflow(upstreamInflow + ci - demandOutflow - ev - r.minEnvironmentalOutflow)
	r.availableVolume = sto.Sto
	r.totalOutflow = r.minEnvironmentalOutflow + math.Max(spill, 0)
}

// AvailableAllocatedVolume returns the utility's share of current storage.
func (r *Reservoir) AvailableAllocatedVolume(utilityID int) float64 {
	if !r.online {
		return 0
	}
	return r.capacityFraction[utilityID] * r.availableVolume
}

// PrioritySourcePotentialVolume for a reservoir is its available allocated
// volume.
func (r *Reservoir) PrioritySourcePotentialVolume(utilityID int) float64 {
	return r.AvailableAllocatedVolume(utilityID)
}

// Clone copies the numeric state; the allocation maps and inflow functions
// are immutable and shared.
func (r *Reservoir) Clone() Source {
	c := *r
	return &c
}
