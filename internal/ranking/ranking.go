// Package ranking narrows a report to the files a reader should see first.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

// SelectFiles returns a new report with only the maxFiles highest-ranked
// files, plus the imports, edges, cycles, clusters and issues among them.
// If maxFiles is <= 0 or >= len(files), the report is returned unchanged.
func SelectFiles(r *model.AnalysisReport, maxFiles int) *model.AnalysisReport {
	if maxFiles <= 0 || maxFiles >= len(r.Files) {
		return r
	}

	byRank := slices.Clone(r.Files)
	slices.SortStableFunc(byRank, func(a, b model.FileSummary) int {
		return cmp.Or(cmp.Compare(b.Rank, a.Rank), cmp.Compare(a.Path, b.Path))
	})
	keep := make(map[string]struct{}, maxFiles)
	for _, f := range byRank[:maxFiles] {
		keep[f.Path] = struct{}{}
	}
	return restrict(r, keep, false)
}

// FilterByPath returns a new report with only the files whose path contains
// substr (case-insensitive). Edges touching a matched file are kept.
func FilterByPath(r *model.AnalysisReport, substr string) *model.AnalysisReport {
	lower := strings.ToLower(substr)
	keep := make(map[string]struct{})
	for _, f := range r.Files {
		if strings.Contains(strings.ToLower(f.Path), lower) {
			keep[f.Path] = struct{}{}
		}
	}
	return restrict(r, keep, true)
}

// restrict copies r keeping only the files in keep. With touching set, an
// edge survives when either end is kept; otherwise both ends must be.
func restrict(r *model.AnalysisReport, keep map[string]struct{}, touching bool) *model.AnalysisReport {
	in := func(p string) bool {
		_, ok := keep[p]
		return ok
	}
	edgeOK := func(src, tgt string) bool {
		if touching {
			return in(src) || in(tgt)
		}
		return in(src) && in(tgt)
	}

	out := &model.AnalysisReport{
		Metadata:   r.Metadata,
		Unresolved: make(map[string][]model.UnresolvedImport),
		Skipped:    r.Skipped,
		Structure:  prune(r.Structure, keep),
	}
	out.Metadata.FileCount = len(keep)
	out.Metadata.Languages = make(map[model.Language]int)

	for _, f := range r.Files {
		if in(f.Path) {
			out.Files = append(out.Files, f)
			out.Metadata.Languages[f.Language]++
		}
	}

	unique := make(map[string]struct{})
	out.ImportStat.ByStatus = make(map[model.ResolutionStatus]int)
	for _, ie := range r.Imports {
		if in(ie.Source) {
			out.Imports = append(out.Imports, ie)
			out.ImportStat.Total++
			out.ImportStat.ByStatus[ie.Status]++
			unique[ie.Raw] = struct{}{}
		}
	}
	out.ImportStat.Unique = len(unique)

	nodes := make(map[string]struct{})
	for _, e := range r.Graph.Edges {
		if edgeOK(e.Source, e.Target) {
			out.Graph.Edges = append(out.Graph.Edges, e)
			nodes[e.Source] = struct{}{}
			nodes[e.Target] = struct{}{}
		}
	}
	for _, n := range r.Graph.Nodes {
		if _, linked := nodes[n]; linked || in(n) {
			out.Graph.Nodes = append(out.Graph.Nodes, n)
		}
	}
	for _, c := range r.Graph.Cycles {
		kept := !slices.ContainsFunc(c.Nodes, func(n string) bool { return !in(n) })
		if touching {
			kept = slices.ContainsFunc(c.Nodes, in)
		}
		if kept {
			out.Graph.Cycles = append(out.Graph.Cycles, c)
		}
	}
	out.Graph.CyclesTruncated = r.Graph.CyclesTruncated
	for _, level := range r.Graph.BuildOrder {
		var l []string
		for _, n := range level {
			if in(n) {
				l = append(l, n)
			}
		}
		if len(l) > 0 {
			out.Graph.BuildOrder = append(out.Graph.BuildOrder, l)
		}
	}

	for src, list := range r.Unresolved {
		if in(src) {
			out.Unresolved[src] = list
		}
	}

	for _, c := range r.Duplicates {
		var frags []model.Fragment
		for _, f := range c.Fragments {
			if in(f.Path) {
				frags = append(frags, f)
			}
		}
		if len(frags) < 2 {
			continue
		}
		c.Fragments = frags
		if !in(c.Representative.Path) {
			c.Representative = frags[0]
		}
		out.Duplicates = append(out.Duplicates, c)
	}

	for _, is := range r.Issues {
		if in(is.Path) {
			out.Issues = append(out.Issues, is)
		}
	}
	for _, fe := range r.Errors {
		if in(fe.Path) {
			out.Errors = append(out.Errors, fe)
		}
	}
	return out
}

// prune copies the structure tree keeping kept files and the directories
// leading to them.
func prune(n *model.TreeNode, keep map[string]struct{}) *model.TreeNode {
	if n == nil {
		return nil
	}
	if !n.Dir {
		if _, ok := keep[n.Path]; ok {
			cp := *n
			return &cp
		}
		return nil
	}
	cp := *n
	cp.Children = nil
	for _, c := range n.Children {
		if pc := prune(c, keep); pc != nil {
			cp.Children = append(cp.Children, pc)
		}
	}
	if len(cp.Children) == 0 && n.Path != "." {
		return nil
	}
	return &cp
}
