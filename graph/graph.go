// Package graph implements the immutable directed-acyclic-graph of water
// sources that underlies the continuity model's weekly mass balance.
package graph

import (
	"fmt"
	"sort"

	"github.com/maseology/mmaths/slice"
)

// Edge is one upstream->downstream connection in the raw source network, as
// handed in by the (external) config loader.
type Edge struct {
	Upstream   int
	Downstream int
}

// SourceGraph is the immutable, topologically ordered view of the source
// network. It never changes after New returns.
type SourceGraph struct {
	order      []int         // topological order of source ids
	upstream   map[int][]int // id -> ids immediately upstream of it
	downstream map[int][]int // id -> ids immediately downstream of it
	first      map[int]int   // id -> first downstream id, or constants.NonInitialized
	ids        []int         // all source ids, in construction order
}

// New builds a SourceGraph from the full set of source ids and the edge
// list. A cyclic graph or an edge referencing an id not in ids is a fatal
// configuration error.
func New(ids []int, edges []Edge) (*SourceGraph, error) {
	known := make(map[int]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	g := &SourceGraph{
		upstream:   make(map[int][]int, len(ids)),
		downstream: make(map[int][]int, len(ids)),
		first:      make(map[int]int, len(ids)),
		ids:        append([]int(nil), ids...),
	}
	for _, id := range ids {
		g.first[id] = -1 // NONE: no downstream source by default
	}

	indeg := make(map[int]int, len(ids))
	for _, id := range ids {
		indeg[id] = 0
	}
	for _, e := range edges {
		if !known[e.Upstream] {
			return nil, fmt.Errorf("graph.New: edge references unknown upstream source %d", e.Upstream)
		}
		if !known[e.Downstream] {
			return nil, fmt.Errorf("graph.New: edge references unknown downstream source %d", e.Downstream)
		}
		g.upstream[e.Downstream] = append(g.upstream[e.Downstream], e.Upstream)
		g.downstream[e.Upstream] = append(g.downstream[e.Upstream], e.Downstream)
		indeg[e.Downstream]++
		if g.first[e.Upstream] == -1 {
			g.first[e.Upstream] = e.Downstream
		}
	}

	order, err := kahn(ids, indeg, g.downstream)
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// kahn computes a topological order, failing fatally (configuration error)
// if the graph contains a cycle.
func kahn(ids []int, indeg map[int]int, downstream map[int][]int) ([]int, error) {
	rem := make(map[int]int, len(indeg))
	for k, v := range indeg {
		rem[k] = v
	}

	var ready []int
	for _, id := range ids {
		if rem[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		var freed []int
		for _, d := range downstream[id] {
			rem[d]--
			if rem[d] == 0 {
				freed = append(freed, d)
			}
		}
		sort.Ints(freed)
		ready = append(ready, freed...)
		sort.Ints(ready)
	}

	if len(order) != len(ids) {
		return nil, fmt.Errorf("graph.New: source network contains a cycle (ordered %d of %d sources)", len(order), len(ids))
	}
	return order, nil
}

// TopologicalOrder returns the cached topological order of source ids.
func (g *SourceGraph) TopologicalOrder() []int {
	return g.order
}

// Upstream returns the ids immediately upstream of id (edges point
// downstream, so these are id's direct inflow sources).
func (g *SourceGraph) Upstream(id int) []int {
	return g.upstream[id]
}

// FirstDownstream returns the first downstream id of id, or -1 (NONE) if id
// is a network outlet.
func (g *SourceGraph) FirstDownstream(id int) int {
	if d, ok := g.first[id]; ok {
		return d
	}
	return -1
}

// Levels groups the topological order into dependency-free rounds: every id
// in round k has all of its upstream ids in rounds < k. Exposed for
// diagnostics (e.g. an external printer summarizing network structure);
// the continuity step always walks the strictly sequential topological
// order regardless of how many ids share a level.
func (g *SourceGraph) Levels() [][]int {
	level := make(map[int]int, len(g.ids))
	var assign func(id, l int)
	assign = func(id, l int) {
		if l > level[id] {
			level[id] = l
		}
		for _, d := range g.downstream[id] {
			assign(d, level[id]+1)
		}
	}
	for _, id := range g.order {
		assign(id, level[id])
	}

	byLevel, levels := slice.InvertMap(level)
	out := make([][]int, len(levels))
	for i, l := range levels {
		ids := append([]int(nil), byLevel[l]...)
		sort.Ints(ids)
		out[i] = ids
	}
	return out
}
