// Package sim composes the weekly loop for one realization: risk-of-failure
// computation, policy decisions, infrastructure handling, the continuity
// step, and post-step accounting, emitting one WeekRecord per utility per
// week for the (external) output writer.
package sim

import (
	"fmt"

	"github.com/gosuri/uiprogress"

	"github.com/bernardoct/Heraclitus/config"
	"github.com/bernardoct/Heraclitus/constants"
	"github.com/bernardoct/Heraclitus/continuity"
	"github.com/bernardoct/Heraclitus/policy"
	"github.com/bernardoct/Heraclitus/rof"
	"github.com/bernardoct/Heraclitus/utility"
)

// WeekRecord is the per-week, per-utility output boundary read by the
// external writer.
type WeekRecord struct {
	Week    int
	Utility int

	RiskOfFailure        float64
	StorageROF           float64
	TreatmentROF         float64
	LongTermROF          float64
	LongTermStorageROF   float64
	LongTermTreatmentROF float64

	RestrictedDemand   float64
	UnrestrictedDemand float64
	UnfulfilledDemand  float64

	GrossRevenue          float64
	ContingencyFund       float64
	DroughtMitigationCost float64
	InsurancePayout       float64
	InsurancePurchase     float64
	CurrentDebtPayment    float64
	CurrentPVDebtPayment  float64
	InfraNetPresentCost   float64
	InfraBuiltLastWeek    []int

	TotalStorageCapacity   float64
	TotalTreatmentCapacity float64
	TotalAvailableVolume   float64
	TotalStoredVolume      float64
	WasteWaterDischarge    float64
	NetStreamInflow        float64
}

// Options tunes the weekly loop.
type Options struct {
	// ROFRealizations is K, the number of shifted historical years the
	// nested ROF models replay.
	ROFRealizations int
	// ShortTermHorizon and LongTermHorizon are the nested forward windows,
	// in weeks.
	ShortTermHorizon int
	LongTermHorizon  int
	// StorageFailureThreshold is the storage-to-capacity ratio below which
	// a nested week counts as a failure.
	StorageFailureThreshold float64
	// ReprojectDemand enables demand re-projection on its configured
	// frequency.
	ReprojectDemand bool
	// Progress draws a terminal progress bar over the realization.
	Progress bool
}

// Simulation drives one realization week by week.
type Simulation struct {
	sys      *config.System
	cm       *continuity.Model
	shortROF *rof.Model
	longROF  *rof.Model
	pol      policy.Policy
	opts     Options
}

// New wires a simulation over an assembled system. realization and
// rdmFactors select and distort the demand traces; pol may be nil for a
// no-op policy.
func New(sys *config.System, realization int, rdmFactors []float64, pol policy.Policy, opts Options) (*Simulation, error) {
	for _, u := range sys.Utilities {
		if err := u.SetRealization(realization, rdmFactors); err != nil {
			return nil, err
		}
	}
	cm, err := continuity.New(sys.Sources, sys.Utilities, sys.Graph, sys.SourcesToUtilities)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		pol = policy.Noop{}
	}
	if opts.ROFRealizations <= 0 {
		opts.ROFRealizations = 50
	}
	if opts.ShortTermHorizon <= 0 {
		opts.ShortTermHorizon = constants.WeeksInYearRound
	}
	if opts.LongTermHorizon <= 0 {
		opts.LongTermHorizon = 5 * constants.WeeksInYearRound
	}
	if opts.StorageFailureThreshold <= 0 {
		opts.StorageFailureThreshold = 0.2
	}
	return &Simulation{
		sys:      sys,
		cm:       cm,
		shortROF: rof.New(sys.Graph, sys.SourcesToUtilities, opts.ROFRealizations, opts.ShortTermHorizon, opts.StorageFailureThreshold, false),
		longROF:  rof.New(sys.Graph, sys.SourcesToUtilities, opts.ROFRealizations, opts.LongTermHorizon, opts.StorageFailureThreshold, true),
		pol:      pol,
		opts:     opts,
	}, nil
}

// ContinuityModel exposes the live single-realization driver.
func (s *Simulation) ContinuityModel() *continuity.Model { return s.cm }

// Run steps startWeek through endWeek (exclusive) and returns one record
// per utility per week. The caller must leave enough demand-trace headroom
// beyond endWeek for the nested ROF horizons.
func (s *Simulation) Run(startWeek, endWeek int) [][]WeekRecord {
	nu := len(s.sys.Utilities)
	records := make([][]WeekRecord, 0, endWeek-startWeek)

	var bar *uiprogress.Bar
	if s.opts.Progress {
		uiprogress.Start()
		bar = uiprogress.AddBar(endWeek - startWeek).AppendCompleted().PrependElapsed()
		first := startWeek
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("week %d", first+b.Current())
		})
	}

	for week := startWeek; week < endWeek; week++ {
		s.step(week)

		row := make([]WeekRecord, nu)
		for i, u := range s.sys.Utilities {
			row[i] = snapshot(week, u)
		}
		records = append(records, row)

		if bar != nil {
			bar.Incr()
		}
	}

	if s.opts.Progress {
		uiprogress.Stop()
	}
	return records
}

// step runs one outer week: demand projection, nested ROFs, policy,
// infrastructure, continuity, in that order.
func (s *Simulation) step(week int) {
	// Annual demand re-projection feeds the long-term ROF.
	if constants.WeekOfYear(week) == 0 {
		for _, u := range s.sys.Utilities {
			u.CalculateDemandEstimate(week, s.opts.ReprojectDemand)
		}
	}

	st := s.shortROF.Run(week, s.sys.Sources, s.sys.Utilities)
	lt := s.longROF.Run(week, s.sys.Sources, s.sys.Utilities)
	for i, u := range s.sys.Utilities {
		u.SetShortTermRisksOfFailure(st[i].StorageROF, st[i].TreatmentROF)
		u.SetLongTermRisksOfFailure(lt[i].StorageROF, lt[i].TreatmentROF)
	}

	for i, u := range s.sys.Utilities {
		s.pol.Decide(week, u, st[i], lt[i])
	}

	// Infrastructure triggering; mutual-exclusion removals broadcast to
	// every utility so jointly listed options disappear everywhere.
	for i, u := range s.sys.Utilities {
		if _, removed := u.HandleInfrastructure(lt[i].ROF, week); len(removed) > 0 {
			for _, other := range s.sys.Utilities {
				if other != u {
					other.RemoveSourcesFromQueues(removed)
				}
			}
		}
	}
	for _, u := range s.sys.Utilities {
		u.BringInfrastructureOnline(week)
	}

	s.cm.Step(week, -1)
}

func snapshot(week int, u *utility.Utility) WeekRecord {
	return WeekRecord{
		Week:                   week,
		Utility:                u.ID(),
		RiskOfFailure:          u.RiskOfFailure(),
		StorageROF:             u.StorageROF(),
		TreatmentROF:           u.TreatmentROF(),
		LongTermROF:            u.LongTermROF(),
		LongTermStorageROF:     u.LongTermStorageROF(),
		LongTermTreatmentROF:   u.LongTermTreatmentROF(),
		RestrictedDemand:       u.RestrictedDemand(),
		UnrestrictedDemand:     u.UnrestrictedDemand(),
		UnfulfilledDemand:      u.UnfulfilledDemand(),
		GrossRevenue:           u.GrossRevenue(),
		ContingencyFund:        u.ContingencyFund(),
		DroughtMitigationCost:  u.DroughtMitigationCost(),
		InsurancePayout:        u.InsurancePayout(),
		InsurancePurchase:      u.InsurancePurchase(),
		CurrentDebtPayment:     u.CurrentDebtPayment(),
		CurrentPVDebtPayment:   u.CurrentPVDebtPayment(),
		InfraNetPresentCost:    u.InfraNetPresentCost(),
		InfraBuiltLastWeek:     append([]int(nil), u.InfraBuiltLastWeek()...),
		TotalStorageCapacity:   u.TotalStorageCapacity(),
		TotalTreatmentCapacity: u.TotalTreatmentCapacity(),
		TotalAvailableVolume:   u.TotalAvailableVolume(),
		TotalStoredVolume:      u.TotalStoredVolume(),
		WasteWaterDischarge:    u.WasteWaterDischarge(),
		NetStreamInflow:        u.NetStreamInflow(),
	}
}
