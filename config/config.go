// Package config is the typed construction boundary of the simulation core.
// The (external) loader decodes files or flags into these structs; Build
// assembles the live sources, utilities, and source graph from them,
// running every fatal configuration validation before any simulation state
// exists.
package config

import (
	"fmt"

	"github.com/bernardoct/Heraclitus/graph"
	"github.com/bernardoct/Heraclitus/source"
	"github.com/bernardoct/Heraclitus/utility"
)

// SourceConfig describes one water-source node.
type SourceConfig struct {
	ID      int
	Name    string
	Variant source.Variant

	Capacity                float64
	MinEnvironmentalOutflow float64
	MaxTreatmentCapacity    float64
	MaxDiversion            float64 // quarry only
	InitialVolume           float64
	Online                  bool

	CatchmentInflow source.InflowFunc
	Evaporation     source.EvaporationFunc
	StorageArea     source.AreaFunc

	Allocations []source.Allocation
}

// UtilityConfig is the per-utility construction input; see utility.Params
// for the field-level description.
type UtilityConfig = utility.Params

// System is the assembled, validated simulation input: the source arena,
// the utilities, the immutable source graph, and the ownership mapping
// (utility index -> owned source ids).
type System struct {
	Sources            []source.Source
	Utilities          []*utility.Utility
	Graph              *graph.SourceGraph
	SourcesToUtilities [][]int
}

// Build assembles the live system. Any configuration error (cycle, bad
// table shape, duplicate ownership, empty demand matrix, missing source
// reference) is fatal here: no partial state escapes.
func Build(sources []SourceConfig, edges []graph.Edge, utilities []UtilityConfig, sourcesToUtilities [][]int) (*System, error) {
	if len(sourcesToUtilities) != len(utilities) {
		return nil, fmt.Errorf("config: %d ownership rows for %d utilities", len(sourcesToUtilities), len(utilities))
	}

	maxID := -1
	for _, sc := range sources {
		if sc.ID > maxID {
			maxID = sc.ID
		}
	}
	arena := make([]source.Source, maxID+1)
	ids := make([]int, 0, len(sources))
	for _, sc := range sources {
		if sc.ID < 0 {
			return nil, fmt.Errorf("config: negative source id %d", sc.ID)
		}
		if arena[sc.ID] != nil {
			return nil, fmt.Errorf("config: duplicate source id %d", sc.ID)
		}
		s, err := buildSource(sc)
		if err != nil {
			return nil, err
		}
		arena[sc.ID] = s
		ids = append(ids, sc.ID)
	}

	g, err := graph.New(ids, edges)
	if err != nil {
		return nil, err
	}

	us := make([]*utility.Utility, len(utilities))
	for i, uc := range utilities {
		u, err := utility.New(uc)
		if err != nil {
			return nil, err
		}
		for _, ws := range sourcesToUtilities[i] {
			if ws < 0 || ws >= len(arena) || arena[ws] == nil {
				return nil, fmt.Errorf("config: utility %d (%s) owns unknown source %d", uc.ID, uc.Name, ws)
			}
		}
		us[i] = u
	}

	return &System{
		Sources:            arena,
		Utilities:          us,
		Graph:              g,
		SourcesToUtilities: sourcesToUtilities,
	}, nil
}

func buildSource(sc SourceConfig) (source.Source, error) {
	inflow := sc.CatchmentInflow
	if inflow == nil {
		inflow = func(int) float64 { return 0 }
	}
	switch sc.Variant {
	case source.VariantReservoir:
		return source.NewReservoir(sc.ID, sc.Name, sc.Capacity, sc.MinEnvironmentalOutflow, sc.MaxTreatmentCapacity, sc.InitialVolume, sc.Online, inflow, sc.Evaporation, sc.StorageArea, sc.Allocations)
	case source.VariantQuarry:
		return source.NewQuarry(sc.ID, sc.Name, sc.Capacity, sc.MinEnvironmentalOutflow, sc.MaxTreatmentCapacity, sc.MaxDiversion, sc.InitialVolume, sc.Online, inflow, sc.Evaporation, sc.StorageArea, sc.Allocations)
	case source.VariantIntake:
		return source.NewIntake(sc.ID, sc.Name, sc.MinEnvironmentalOutflow, sc.MaxTreatmentCapacity, sc.Online, inflow, sc.Allocations)
	case source.VariantAllocatedIntake:
		return source.NewAllocatedIntake(sc.ID, sc.Name, sc.MinEnvironmentalOutflow, sc.MaxTreatmentCapacity, sc.Online, inflow, sc.Allocations)
	case source.VariantReuse:
		return source.NewReuse(sc.ID, sc.Name, sc.MaxTreatmentCapacity, sc.Online, inflow, sc.Allocations)
	default:
		return nil, fmt.Errorf("config: source %d (%s) has unknown variant %d", sc.ID, sc.Name, sc.Variant)
	}
}
