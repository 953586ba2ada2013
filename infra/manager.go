// Package infra implements per-utility infrastructure sequencing: two
// ordered construction queues (ROF-triggered and demand-triggered), per
// source trigger thresholds, mutual-exclusion rows, and the weekly
// bring-online transition. The manager is keyed purely by small integer
// source ids and returns plain data; bond issuance belongs to the utility.
package infra

import (
	"fmt"

	"github.com/bernardoct/Heraclitus/constants"
)

// Manager sequences one utility's construction program. At most one project
// from each queue may be under construction at a time.
type Manager struct {
	utilityID        int
	rofOrder         []int
	demandOrder      []int
	triggers         map[int]float64
	constructionTime map[int]int
	ifBuiltRemove    [][]int
	sequencePred     map[int]int // project -> predecessor it shares capital cost with

	underConstruction map[int]bool
	constructionEnd   map[int]int
	builtLastWeek     []int
}

// NewManager builds a construction manager. Both queues empty means the
// utility has no construction program and should use no manager at all,
// which is a configuration error surfaced by the caller.
func NewManager(utilityID int, rofOrder, demandOrder []int, triggers map[int]float64, constructionTime map[int]int, ifBuiltRemove [][]int, sequencePred map[int]int) (*Manager, error) {
	for _, row := range ifBuiltRemove {
		if len(row) < 2 {
			return nil, fmt.Errorf("infra: utility %d mutual-exclusion row needs a trigger id and at least one removal id, got %v", utilityID, row)
		}
	}
	for _, id := range append(append([]int(nil), rofOrder...), demandOrder...) {
		if _, ok := triggers[id]; !ok {
			return nil, fmt.Errorf("infra: utility %d queued source %d has no trigger threshold", utilityID, id)
		}
	}
	return &Manager{
		utilityID:         utilityID,
		rofOrder:          append([]int(nil), rofOrder...),
		demandOrder:       append([]int(nil), demandOrder...),
		triggers:          triggers,
		constructionTime:  constructionTime,
		ifBuiltRemove:     ifBuiltRemove,
		sequencePred:      sequencePred,
		underConstruction: make(map[int]bool),
		constructionEnd:   make(map[int]int),
	}, nil
}

// ROFOrder returns the remaining ROF-triggered queue.
func (m *Manager) ROFOrder() []int { return m.rofOrder }

// DemandOrder returns the remaining demand-triggered queue.
func (m *Manager) DemandOrder() []int { return m.demandOrder }

// UnderConstruction reports whether the source is currently being built.
func (m *Manager) UnderConstruction(id int) bool { return m.underConstruction[id] }

// ConstructionTime returns the configured build duration for the source, in
// weeks.
func (m *Manager) ConstructionTime(id int) int { return m.constructionTime[id] }

// BuiltLastWeek returns the ids brought online by the latest BringOnline.
func (m *Manager) BuiltLastWeek() []int { return m.builtLastWeek }

// SequencePredecessor returns the project id whose capital cost the given
// project shares, if any.
func (m *Manager) SequencePredecessor(id int) (int, bool) {
	p, ok := m.sequencePred[id]
	return p, ok
}

// Handle checks both queue heads against their metrics and begins at most
// one construction. It returns the triggered source id (or
// constants.NonInitialized) and the ids removed from the queues by
// mutual-exclusion rows, which the caller must broadcast to co-owning
// utilities.
func (m *Manager) Handle(longTermROF float64, week int, pastYearAvgDemand float64) (int, []int) {
	if id, ok := m.queueReady(m.rofOrder, longTermROF); ok {
		return id, m.begin(id, week)
	}
	if id, ok := m.queueReady(m.demandOrder, pastYearAvgDemand); ok {
		return id, m.begin(id, week)
	}
	return constants.NonInitialized, nil
}

// queueReady examines only the queue head: a head already under
// construction means the queue is busy this week.
func (m *Manager) queueReady(queue []int, metric float64) (int, bool) {
	if len(queue) == 0 {
		return 0, false
	}
	head := queue[0]
	if m.underConstruction[head] {
		return 0, false
	}
	if metric > m.triggers[head] {
		return head, true
	}
	return 0, false
}

func (m *Manager) begin(id, week int) []int {
	m.underConstruction[id] = true
	m.constructionEnd[id] = week + m.constructionTime[id]
	removed := m.relatedRemovals(id)
	m.RemoveSources(removed)
	return removed
}

func (m *Manager) relatedRemovals(triggerID int) []int {
	var removed []int
	for _, row := range m.ifBuiltRemove {
		if row[0] == triggerID {
			removed = append(removed, row[1:]...)
		}
	}
	return removed
}

// RemoveSources deletes the given ids from both queues. Called locally when
// a mutual-exclusion row fires, and by the outer loop to broadcast another
// utility's removals.
func (m *Manager) RemoveSources(ids []int) {
	for _, id := range ids {
		m.rofOrder = removeID(m.rofOrder, id)
		m.demandOrder = removeID(m.demandOrder, id)
	}
}

func removeID(queue []int, id int) []int {
	out := queue[:0]
	for _, q := range queue {
		if q != id {
			out = append(out, q)
		}
	}
	return out
}

// ForceConstruction begins the given projects regardless of their triggers,
// used when an exogenous policy decision builds infrastructure directly.
// Returns the ids whose construction actually began this call.
func (m *Manager) ForceConstruction(week int, ids []int) []int {
	var began []int
	for _, id := range ids {
		if m.underConstruction[id] {
			continue
		}
		if !contains(m.rofOrder, id) && !contains(m.demandOrder, id) {
			continue
		}
		m.begin(id, week)
		began = append(began, id)
	}
	return began
}

func contains(queue []int, id int) bool {
	for _, q := range queue {
		if q == id {
			return true
		}
	}
	return false
}

// BringOnline transitions every project whose construction has ended by
// week, invoking setOnline for each and recording it in BuiltLastWeek. The
// completed project leaves its queue atomically with the transition.
func (m *Manager) BringOnline(week int, setOnline func(id int)) {
	m.builtLastWeek = m.builtLastWeek[:0]
	for _, id := range m.orderedUnderConstruction() {
		if m.constructionEnd[id] > week {
			continue
		}
		delete(m.underConstruction, id)
		delete(m.constructionEnd, id)
		m.RemoveSources([]int{id})
		setOnline(id)
		m.builtLastWeek = append(m.builtLastWeek, id)
	}
}

// orderedUnderConstruction lists in-flight projects in ascending id order so
// the bring-online sweep is deterministic.
func (m *Manager) orderedUnderConstruction() []int {
	var ids []int
	for id := range m.underConstruction {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Clone copies the mutable queue and construction state; configuration maps
// are shared.
func (m *Manager) Clone() *Manager {
	c := &Manager{
		utilityID:         m.utilityID,
		rofOrder:          append([]int(nil), m.rofOrder...),
		demandOrder:       append([]int(nil), m.demandOrder...),
		triggers:          m.triggers,
		constructionTime:  m.constructionTime,
		ifBuiltRemove:     m.ifBuiltRemove,
		sequencePred:      m.sequencePred,
		underConstruction: make(map[int]bool, len(m.underConstruction)),
		constructionEnd:   make(map[int]int, len(m.constructionEnd)),
		builtLastWeek:     append([]int(nil), m.builtLastWeek...),
	}
	for k, v := range m.underConstruction {
		c.underConstruction[k] = v
	}
	for k, v := range m.constructionEnd {
		c.constructionEnd[k] = v
	}
	return c
}
