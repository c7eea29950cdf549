// Package graph resolves import tokens to files, builds the dependency graph,
// and computes cycles, build order and PageRank over it.
package graph

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/registry"
)

// Options configures Build.
type Options struct {
	MaxCycles int
}

// Graph is an immutable dependency graph. Derived views are computed on first
// use and cached.
type Graph struct {
	nodes      []string
	index      map[string]int
	out        [][]int // sorted target indices per node
	edges      []model.Dependency
	imports    []model.ImportEdge
	unresolved map[string][]model.UnresolvedImport
	maxCycles  int

	cyclesOnce sync.Once
	cycles     []model.Cycle
	truncated  bool

	orderOnce sync.Once
	order     [][]string
}

// Build resolves every unit's import tokens and returns the resulting graph.
// tokens is keyed by unit path. reg may be nil, in which case only naming
// conventions mark an import external.
func Build(units []model.SourceUnit, tokens map[string][]model.ImportToken, reg *registry.Registry, opts Options) *Graph {
	if reg == nil {
		reg = &registry.Registry{}
	}
	g := &Graph{
		index:      make(map[string]int, len(units)),
		unresolved: make(map[string][]model.UnresolvedImport),
		maxCycles:  opts.MaxCycles,
	}
	for _, u := range units {
		g.nodes = append(g.nodes, u.Path)
	}
	slices.Sort(g.nodes)
	g.nodes = slices.Compact(g.nodes)
	for i, n := range g.nodes {
		g.index[n] = i
	}

	r := &resolver{ix: newFileIndex(units), reg: reg}

	type edgeKey struct{ src, tgt string }
	seen := make(map[edgeKey]struct{})

	for _, src := range g.nodes {
		toks := slices.Clone(tokens[src])
		slices.SortStableFunc(toks, func(a, b model.ImportToken) int { return cmp.Compare(a.Line, b.Line) })
		l := r.ix.lang[src]

		for _, tok := range toks {
			res := r.resolve(src, tok)
			ie := model.ImportEdge{Source: src, Raw: tok.Raw, Line: tok.Line}
			switch {
			case len(res.targets) > 0:
				ie.Status = model.Resolved
				for _, tgt := range res.targets {
					if tgt == src {
						continue // no self-edges
					}
					if ie.Target == "" {
						ie.Target = tgt
					}
					key := edgeKey{src, tgt}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					g.edges = append(g.edges, model.Dependency{Source: src, Target: tgt, Raw: tok.Raw, Line: tok.Line})
				}
			case len(res.candidates) > 0:
				ie.Status = model.Ambiguous
				ie.Candidates = res.candidates
			case reg.IsExternal(l, tok):
				ie.Status = model.External
			default:
				ie.Status = model.Unresolved
				g.unresolved[src] = append(g.unresolved[src], model.UnresolvedImport{Raw: tok.Raw, Line: tok.Line})
			}
			g.imports = append(g.imports, ie)
		}
	}

	slices.SortFunc(g.edges, func(a, b model.Dependency) int {
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})
	g.out = make([][]int, len(g.nodes))
	for _, e := range g.edges {
		s := g.index[e.Source]
		g.out[s] = append(g.out[s], g.index[e.Target])
	}
	return g
}

// Nodes returns every unit path, sorted.
func (g *Graph) Nodes() []string { return g.nodes }

// Edges returns the deduplicated dependencies, sorted by source then target.
func (g *Graph) Edges() []model.Dependency { return g.edges }

// Imports returns one entry per import token with its resolution status.
func (g *Graph) Imports() []model.ImportEdge { return g.imports }

// Unresolved returns the imports that matched no file and no known package,
// keyed by importing file.
func (g *Graph) Unresolved() map[string][]model.UnresolvedImport { return g.unresolved }

// Snapshot returns the serializable view of the graph.
func (g *Graph) Snapshot() model.DependencyGraph {
	cycles := g.Cycles()
	return model.DependencyGraph{
		Nodes:           g.nodes,
		Edges:           g.edges,
		Cycles:          cycles,
		CyclesTruncated: g.truncated,
		BuildOrder:      g.BuildOrder(),
	}
}

// Stats summarizes the import entries.
func (g *Graph) Stats() model.ImportStats {
	st := model.ImportStats{ByStatus: make(map[model.ResolutionStatus]int)}
	unique := make(map[string]struct{})
	for _, ie := range g.imports {
		st.Total++
		st.ByStatus[ie.Status]++
		unique[ie.Raw] = struct{}{}
	}
	st.Unique = len(unique)
	return st
}

// Rank computes PageRank centrality per file. An edge from A to B passes A's
// rank to B, so heavily imported files rank highest.
func (g *Graph) Rank() map[string]float64 {
	n := len(g.nodes)
	if n == 0 {
		return nil
	}
	ranks := make(map[string]float64, n)
	if len(g.edges) == 0 {
		for _, node := range g.nodes {
			ranks[node] = 1.0 / float64(n)
		}
		return ranks
	}
	for i, r := range pageRank(n, g.out, 0.85, 100, 1e-6) {
		ranks[g.nodes[i]] = r
	}
	return ranks
}

func pageRank(n int, outEdges [][]int, alpha float64, maxIter int, tol float64) []float64 {
	rank := make([]float64, n)
	initial := 1.0 / float64(n)
	for i := range rank {
		rank[i] = initial
	}

	teleport := (1.0 - alpha) / float64(n)
	newRank := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range rank {
			if len(outEdges[node]) == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range newRank {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(len(targets))
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range rank {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank, newRank = newRank, rank

		if diff < tol {
			break
		}
	}

	return rank
}
