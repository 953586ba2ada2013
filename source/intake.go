package source

import "math"

// Intake is a run-of-river source with no storage: what a utility can draw
// in the upcoming week is its inflow share, capped by its allocated
// treatment capacity.
type Intake struct {
	base
	postDemandAvailable float64
}

func NewIntake(id int, name string, minEnvOutflow, maxTreatment float64, online bool, catchmentInflow InflowFunc, allocations []Allocation) (*Intake, error) {
	b, err := newBase(id, name, VariantIntake, 0, minEnvOutflow, maxTreatment, catchmentInflow, allocations)
	if err != nil {
		return nil, err
	}
	b.online = online
	return &Intake{base: b}, nil
}

func (in *Intake) ApplyContinuity(week int, upstreamInflow, demandOutflow float64) {
	ci := in.catchmentInflow(week)
	in.recordInflows(upstreamInflow, ci)
	totalInflow := upstreamInflow + ci

	if !in.online {
		in.totalOutflow = totalInflow
		return
	}

	in.availableVolume = math.Max(0, totalInflow-in.minEnvironmentalOutflow)
	drawn := math.Min(demandOutflow, in.availableVolume)
	in.postDemandAvailable = in.availableVolume - drawn
	in.totalOutflow = totalInflow - drawn
}

// AvailableAllocatedVolume is the utility's inflow share for the upcoming
// week, capped at its allocated treatment capacity.
func (in *Intake) AvailableAllocatedVolume(utilityID int) float64 {
	if !in.online {
		return 0
	}
	share := in.inflowFraction[utilityID] * (in.upstreamSourceInflow + in.upstreamCatchmentInflow)
	return math.Min(share, in.AllocatedTreatmentCapacity(utilityID))
}

// PrioritySourcePotentialVolume for an intake is what remains after the
// week's demands were drawn.
func (in *Intake) PrioritySourcePotentialVolume(utilityID int) float64 {
	if !in.online {
		return 0
	}
	return in.inflowFraction[utilityID] * in.postDemandAvailable
}

func (in *Intake) Clone() Source {
	c := *in
	return &c
}

// AllocatedIntake is an intake backing a jointly owned, variable-capacity
// treatment plant. Allocation fractions need not sum to the full plant
// capacity, so the treatment fraction reported for debt-service scaling is
// normalized over the current co-owners.
type AllocatedIntake struct {
	Intake
}

func NewAllocatedIntake(id int, name string, minEnvOutflow, maxTreatment float64, online bool, catchmentInflow InflowFunc, allocations []Allocation) (*AllocatedIntake, error) {
	in, err := NewIntake(id, name, minEnvOutflow, maxTreatment, online, catchmentInflow, allocations)
	if err != nil {
		return nil, err
	}
	in.variant = VariantAllocatedIntake
	return &AllocatedIntake{Intake: *in}, nil
}

// AllocatedTreatmentFraction normalizes the static fraction by the sum over
// all co-owners, so variable joint-plant debt service splits over what is
// actually allocated.
func (ai *AllocatedIntake) AllocatedTreatmentFraction(utilityID int) float64 {
	sum := 0.0
	for _, f := range ai.treatmentFraction {
		sum += f
	}
	if sum <= 0 {
		return 0
	}
	return ai.treatmentFraction[utilityID] / sum
}

func (ai *AllocatedIntake) Clone() Source {
	c := *ai
	return &c
}
