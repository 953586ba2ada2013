// Package source implements the polymorphic water-source network nodes:
// Reservoir, Quarry, Intake, AllocatedIntake, and Reuse. Each variant is a
// small struct implementing the Source interface; there is no deeper
// hierarchy.
package source

import "fmt"

// Variant tags which mass-balance behavior a Source implements.
type Variant int

const (
	VariantReservoir Variant = iota
	VariantQuarry
	VariantIntake
	VariantAllocatedIntake
	VariantReuse
)

func (v Variant) String() string {
	switch v {
	case VariantReservoir:
		return "Reservoir"
	case VariantQuarry:
		return "Quarry"
	case VariantIntake:
		return "Intake"
	case VariantAllocatedIntake:
		return "AllocatedIntake"
	case VariantReuse:
		return "Reuse"
	default:
		return "Unknown"
	}
}

// InflowFunc supplies a source's weekly catchment inflow. The (excluded)
// hydrologic-data-generation collaborator owns the actual streamflow trace;
// the core only ever calls this function with a week index.
type InflowFunc func(week int) float64

// EvaporationFunc supplies a reservoir's weekly evaporative loss given the
// week and the current storage surface area.
type EvaporationFunc func(week int, surfaceArea float64) float64

// AreaFunc maps stored volume to surface area (the storage-area curve).
type AreaFunc func(volume float64) float64

// Source is the contract every water-source variant implements. Allocation
// accessors are keyed by small integer utility ids; sources never hold a
// reference to a Utility, only its id.
type Source interface {
	ID() int
	Name() string
	Variant() Variant
	Online() bool
	Capacity() float64
	AvailableVolume() float64
	TotalOutflow() float64

	// ApplyContinuity runs this source's weekly mass balance. demandOutflow
	// is the total (summed across utilities) demand placed on this source
	// for the week, already resolved by Utility.SplitDemands.
	ApplyContinuity(week int, upstreamInflow float64, demandOutflow float64)

	// SetOnline brings the source online starting the given week. Safe to
	// call at most once; a second call is a no-op.
	SetOnline(week int)

	AllocatedCapacity(utilityID int) float64
	AllocatedTreatmentCapacity(utilityID int) float64
	AllocatedTreatmentFraction(utilityID int) float64
	AllocatedInflow(utilityID int) float64
	AvailableAllocatedVolume(utilityID int) float64
	PrioritySourcePotentialVolume(utilityID int) float64

	// Clone returns a value copy suitable for the ROF sub-simulator's
	// cheap per-week snapshot: a plain-data clone, not a deep object
	// graph walk.
	Clone() Source
}

// Allocation is one utility's share of a source's capacity, treatment
// capacity, and inflow, as handed in by the (external) config loader.
type Allocation struct {
	UtilityID         int
	CapacityFraction  float64
	TreatmentFraction float64
	InflowFraction    float64
}

// base holds the fields and bookkeeping shared by every variant. The
// allocation-fraction maps are immutable after construction and shared by
// clones; only the numeric state is per-instance.
type base struct {
	id                      int
	name                    string
	variant                 Variant
	online                  bool
	onlineWeek              int
	capacity                float64
	minEnvironmentalOutflow float64
	maxTreatmentCapacity    float64
	availableVolume         float64
	totalOutflow            float64
	upstreamSourceInflow    float64
	upstreamCatchmentInflow float64
	catchmentInflow         InflowFunc

	capacityFraction  map[int]float64
	treatmentFraction map[int]float64
	inflowFraction    map[int]float64
}

func newBase(id int, name string, variant Variant, capacity, minEnvOutflow, maxTreatment float64, catchmentInflow InflowFunc, allocations []Allocation) (base, error) {
	sum := 0.0
	b := base{
		id:                      id,
		name:                    name,
		variant:                 variant,
		capacity:                capacity,
		minEnvironmentalOutflow: minEnvOutflow,
		maxTreatmentCapacity:    maxTreatment,
		catchmentInflow:         catchmentInflow,
		capacityFraction:        make(map[int]float64, len(allocations)),
		treatmentFraction:       make(map[int]float64, len(allocations)),
		inflowFraction:          make(map[int]float64, len(allocations)),
	}
	for _, a := range allocations {
		b.capacityFraction[a.UtilityID] = a.CapacityFraction
		b.treatmentFraction[a.UtilityID] = a.TreatmentFraction
		b.inflowFraction[a.UtilityID] = a.InflowFraction
		sum += a.CapacityFraction
	}
	if sum > 1.0+1e-9 {
		return base{}, fmt.Errorf("source %d (%s): allocation fractions sum to %.6f, exceeds 1.0", id, name, sum)
	}
	return b, nil
}

func (b *base) ID() int                  { return b.id }
func (b *base) Name() string             { return b.name }
func (b *base) Variant() Variant         { return b.variant }
func (b *base) Online() bool             { return b.online }
func (b *base) Capacity() float64        { return b.capacity }
func (b *base) AvailableVolume() float64 { return b.availableVolume }
func (b *base) TotalOutflow() float64    { return b.totalOutflow }

func (b *base) AllocatedCapacity(u int) float64 {
	return b.capacityFraction[u] * b.capacity
}

func (b *base) AllocatedTreatmentCapacity(u int) float64 {
	return b.treatmentFraction[u] * b.maxTreatmentCapacity
}

// AllocatedTreatmentFraction returns the static treatment-allocation
// fraction. AllocatedIntake overrides this to normalize across the current
// co-owners of a joint plant.
func (b *base) AllocatedTreatmentFraction(u int) float64 {
	return b.treatmentFraction[u]
}

func (b *base) AllocatedInflow(u int) float64 {
	return b.inflowFraction[u] * (b.upstreamSourceInflow + b.upstreamCatchmentInflow)
}

// SetOnline brings the source online starting the given week. A second call
// is a no-op.
func (b *base) SetOnline(week int) {
	if b.online {
		return
	}
	b.online = true
	b.onlineWeek = week
}

func (b *base) recordInflows(upstreamInflow, catchmentInflow float64) {
	b.upstreamSourceInflow = upstreamInflow
	b.upstreamCatchmentInflow = catchmentInflow
}
