package source

// Reuse is a wastewater-reuse facility: a terminal node whose weekly yield
// is exactly its allocated treatment capacity. It contributes nothing to the
// downstream network.
type Reuse struct {
	base
}

func NewReuse(id int, name string, maxTreatment float64, online bool, catchmentInflow InflowFunc, allocations []Allocation) (*Reuse, error) {
	if catchmentInflow == nil {
		catchmentInflow = func(int) float64 { return 0 }
	}
	b, err := newBase(id, name, VariantReuse, 0, 0, maxTreatment, catchmentInflow, allocations)
	if err != nil {
		return nil, err
	}
	b.online = online
	return &Reuse{base: b}, nil
}

func (r *Reuse) ApplyContinuity(week int, upstreamInflow, demandOutflow float64) {
	ci := r.catchmentInflow(week)
	r.recordInflows(upstreamInflow, ci)
	r.totalOutflow = 0
}

// AvailableAllocatedVolume for reuse is the allocated treatment capacity.
func (r *Reuse) AvailableAllocatedVolume(utilityID int) float64 {
	if !r.online {
		return 0
	}
	return r.AllocatedTreatmentCapacity(utilityID)
}

func (r *Reuse) PrioritySourcePotentialVolume(utilityID int) float64 { return 0 }

func (r *Reuse) Clone() Source {
	c := *r
	return &c
}
