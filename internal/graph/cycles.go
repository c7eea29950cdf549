package graph

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/phobologic/codescope/internal/model"
)

// cycleSearchBudget bounds DFS steps so dense components cannot stall a run.
const cycleSearchBudget = 2_000_000

// Cycles returns every elementary import cycle, each rotated to start at its
// lexicographically smallest file and reported once. Enumeration stops after
// the configured maximum.
func (g *Graph) Cycles() []model.Cycle {
	g.cyclesOnce.Do(func() {
		g.cycles, g.truncated = g.findCycles()
	})
	return g.cycles
}

func (g *Graph) directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i := range g.nodes {
		dg.AddNode(simple.Node(i))
	}
	for s, targets := range g.out {
		for _, t := range targets {
			dg.SetEdge(dg.NewEdge(simple.Node(s), simple.Node(t)))
		}
	}
	return dg
}

// components returns the strongly connected components as sorted node
// indices, each component sorted, ordered by smallest member.
func (g *Graph) components() [][]int {
	var comps [][]int
	for _, scc := range topo.TarjanSCC(g.directed()) {
		comp := make([]int, len(scc))
		for i, n := range scc {
			comp[i] = int(n.ID())
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	slices.SortFunc(comps, func(a, b []int) int { return a[0] - b[0] })
	return comps
}

func (g *Graph) findCycles() ([]model.Cycle, bool) {
	limit := g.maxCycles
	if limit <= 0 {
		limit = 1000
	}
	s := cycleSearch{g: g, limit: limit, budget: cycleSearchBudget}

	for _, comp := range g.components() {
		if len(comp) < 2 {
			continue
		}
		s.member = make(map[int]bool, len(comp))
		for _, n := range comp {
			s.member[n] = true
		}
		// Node indices follow sorted path order, so starting from each node
		// and visiting only larger ones finds each cycle once, at its minimum.
		for _, start := range comp {
			s.start = start
			s.onPath = map[int]bool{start: true}
			s.path = []int{start}
			if !s.dfs(start) {
				return s.found, true
			}
		}
	}
	return s.found, false
}

type cycleSearch struct {
	g      *Graph
	limit  int
	budget int
	member map[int]bool
	start  int
	onPath map[int]bool
	path   []int
	found  []model.Cycle
}

// dfs extends the current path from n. It returns false once the cycle limit
// or step budget is exhausted.
func (s *cycleSearch) dfs(n int) bool {
	for _, next := range s.g.out[n] {
		if s.budget--; s.budget < 0 {
			return false
		}
		switch {
		case next == s.start:
			nodes := make([]string, len(s.path))
			for i, idx := range s.path {
				nodes[i] = s.g.nodes[idx]
			}
			s.found = append(s.found, model.Cycle{Nodes: nodes})
			if len(s.found) >= s.limit {
				return false
			}
		case next > s.start && s.member[next] && !s.onPath[next]:
			s.onPath[next] = true
			s.path = append(s.path, next)
			ok := s.dfs(next)
			s.path = s.path[:len(s.path)-1]
			delete(s.onPath, next)
			if !ok {
				return false
			}
		}
	}
	return true
}

// BuildOrder groups files into levels: each level holds every file whose
// imports all sit in earlier levels, sorted by path. Files in a cycle share a
// level.
func (g *Graph) BuildOrder() [][]string {
	g.orderOnce.Do(func() {
		g.order = g.buildOrder()
	})
	return g.order
}

func (g *Graph) buildOrder() [][]string {
	comps := g.components()
	compOf := make([]int, len(g.nodes))
	for ci, comp := range comps {
		for _, n := range comp {
			compOf[n] = ci
		}
	}

	// Condensation edges point from a dependency to its dependents, so a
	// component becomes ready once everything it imports has been placed.
	pending := make([]int, len(comps))
	dependents := make([][]int, len(comps))
	type pair struct{ from, to int }
	seen := make(map[pair]bool)
	for s, targets := range g.out {
		for _, t := range targets {
			cs, ct := compOf[s], compOf[t]
			if cs == ct || seen[pair{cs, ct}] {
				continue
			}
			seen[pair{cs, ct}] = true
			pending[cs]++
			dependents[ct] = append(dependents[ct], cs)
		}
	}

	var ready []int
	for ci := range comps {
		if pending[ci] == 0 {
			ready = append(ready, ci)
		}
	}

	var order [][]string
	for len(ready) > 0 {
		// Every ready component forms one level. Node indices follow path
		// order, so sorting them sorts the level by path.
		var level []int
		var next []int
		for _, ci := range ready {
			level = append(level, comps[ci]...)
			for _, d := range dependents[ci] {
				if pending[d]--; pending[d] == 0 {
					next = append(next, d)
				}
			}
		}
		slices.Sort(level)
		group := make([]string, len(level))
		for i, n := range level {
			group[i] = g.nodes[n]
		}
		order = append(order, group)
		ready = next
	}
	return order
}
