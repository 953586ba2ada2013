package infra_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernardoct/Heraclitus/constants"
	"github.com/bernardoct/Heraclitus/infra"
)

func newManager(t *testing.T, rofOrder, demandOrder []int, ifBuiltRemove [][]int) *infra.Manager {
	t.Helper()
	triggers := map[int]float64{7: 0.1, 9: 0.2, 11: 0.3, 13: 500}
	times := map[int]int{7: 2, 9: 3, 11: 3, 13: 4}
	m, err := infra.NewManager(0, rofOrder, demandOrder, triggers, times, ifBuiltRemove, nil)
	require.NoError(t, err)
	return m
}

func TestHandle_ROFTrigger(t *testing.T) {
	m := newManager(t, []int{7, 9}, nil, nil)

	id, _ := m.Handle(0.15, 10, 0)
	assert.Equal(t, 7, id)
	assert.True(t, m.UnderConstruction(7))

	// The queue is busy while its head builds.
	id, _ = m.Handle(0.95, 11, 0)
	assert.Equal(t, constants.NonInitialized, id)
}

func TestHandle_BelowThresholdDoesNothing(t *testing.T) {
	m := newManager(t, []int{7}, nil, nil)

	id, _ := m.Handle(0.05, 10, 0)
	assert.Equal(t, constants.NonInitialized, id)
	assert.False(t, m.UnderConstruction(7))
}

func TestHandle_DemandTrigger(t *testing.T) {
	m := newManager(t, nil, []int{13}, nil)

	id, _ := m.Handle(0, 10, 499)
	assert.Equal(t, constants.NonInitialized, id)

	id, _ = m.Handle(0, 11, 501)
	assert.Equal(t, 13, id)
}

func TestHandle_MutualExclusionRemovals(t *testing.T) {
	m := newManager(t, []int{7, 9}, []int{11}, [][]int{{7, 9, 11}})

	id, removed := m.Handle(0.15, 10, 0)
	assert.Equal(t, 7, id)
	assert.ElementsMatch(t, []int{9, 11}, removed)
	assert.Equal(t, []int{7}, m.ROFOrder())
	assert.Empty(t, m.DemandOrder())
}

func TestRemoveSources_Broadcast(t *testing.T) {
	other := newManager(t, []int{9, 13}, []int{11}, nil)
	other.RemoveSources([]int{9, 11})
	assert.Equal(t, []int{13}, other.ROFOrder())
	assert.Empty(t, other.DemandOrder())
}

func TestBringOnline_CompletesAtEndDate(t *testing.T) {
	m := newManager(t, []int{7}, nil, nil)
	id, _ := m.Handle(0.15, 10, 0) // construction time 2 -> ends week 12
	require.Equal(t, 7, id)

	var online []int
	m.BringOnline(11, func(id int) { online = append(online, id) })
	assert.Empty(t, online)
	assert.Empty(t, m.BuiltLastWeek())

	m.BringOnline(12, func(id int) { online = append(online, id) })
	assert.Equal(t, []int{7}, online)
	assert.Equal(t, []int{7}, m.BuiltLastWeek())
	assert.False(t, m.UnderConstruction(7))
	assert.Empty(t, m.ROFOrder(), "completed project leaves its queue")

	// The built flag is week-scoped.
	m.BringOnline(13, func(int) {})
	assert.Empty(t, m.BuiltLastWeek())
}

func TestForceConstruction(t *testing.T) {
	m := newManager(t, []int{7, 9}, nil, nil)

	began := m.ForceConstruction(10, []int{9, 42})
	assert.Equal(t, []int{9}, began, "unknown options are ignored")
	assert.True(t, m.UnderConstruction(9))

	assert.Empty(t, m.ForceConstruction(11, []int{9}), "already building")
}

func TestClone_IsolatesQueueState(t *testing.T) {
	m := newManager(t, []int{7, 9}, nil, nil)
	c := m.Clone()

	id, _ := c.Handle(0.15, 10, 0)
	require.Equal(t, 7, id)
	assert.True(t, c.UnderConstruction(7))
	assert.False(t, m.UnderConstruction(7), "the live manager is untouched")
}

func TestNewManager_QueuedSourceNeedsTrigger(t *testing.T) {
	_, err := infra.NewManager(0, []int{99}, nil, map[int]float64{}, nil, nil, nil)
	assert.Error(t, err)
}
