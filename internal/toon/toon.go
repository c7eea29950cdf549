// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// analysis reports, a compact tabular form for LLM context builders.
package toon

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a report into TOON format.
func Encode(r *model.AnalysisReport) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(r.Metadata.Root)))
	if r.Metadata.RunID != "" {
		parts = append(parts, fmt.Sprintf("run: %s", encodeValue(r.Metadata.RunID)))
	}
	if r.Metadata.Digest != "" {
		parts = append(parts, fmt.Sprintf("digest: %s", encodeValue(r.Metadata.Digest)))
	}

	var fileRows [][]string
	for i := range r.Files {
		f := &r.Files[i]
		fileRows = append(fileRows, []string{
			f.Path,
			string(f.Language),
			itoa(int(f.Size)),
			itoa(f.Imports),
			itoa(f.Issues),
			fmt.Sprintf("%.2f", f.Score),
			fmt.Sprintf("%.4f", f.Rank),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "size", "imports", "issues", "score", "rank"}, fileRows))

	var importRows [][]string
	for i := range r.Imports {
		ie := &r.Imports[i]
		target := ie.Target
		if ie.Status == model.Ambiguous {
			target = strings.Join(ie.Candidates, " ")
		}
		importRows = append(importRows, []string{ie.Source, ie.Raw, itoa(ie.Line), string(ie.Status), target})
	}
	parts = append(parts, formatTabular("imports", []string{"source", "raw", "line", "status", "target"}, importRows))

	var depRows [][]string
	for i := range r.Graph.Edges {
		d := &r.Graph.Edges[i]
		depRows = append(depRows, []string{d.Source, d.Target, d.Raw, itoa(d.Line)})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "raw", "line"}, depRows))

	var cycleRows [][]string
	for i, c := range r.Graph.Cycles {
		cycleRows = append(cycleRows, []string{itoa(i + 1), strings.Join(c.Nodes, " -> ")})
	}
	parts = append(parts, formatTabular("cycles", []string{"id", "nodes"}, cycleRows))
	if r.Graph.CyclesTruncated {
		parts = append(parts, "cycles_truncated: true")
	}

	var orderRows [][]string
	for i, level := range r.Graph.BuildOrder {
		orderRows = append(orderRows, []string{itoa(i), strings.Join(level, " ")})
	}
	parts = append(parts, formatTabular("build_order", []string{"step", "files"}, orderRows))

	var unresolvedRows [][]string
	for _, src := range sortedKeys(r.Unresolved) {
		for _, u := range r.Unresolved[src] {
			unresolvedRows = append(unresolvedRows, []string{src, u.Raw, itoa(u.Line)})
		}
	}
	parts = append(parts, formatTabular("unresolved", []string{"file", "raw", "line"}, unresolvedRows))

	var dupRows [][]string
	for _, c := range r.Duplicates {
		for _, f := range c.Fragments {
			dupRows = append(dupRows, []string{
				c.ID,
				fmt.Sprintf("%.3f", c.Similarity),
				f.Path,
				itoa(f.StartLine),
				itoa(f.EndLine),
				itoa(f.Tokens),
			})
		}
	}
	parts = append(parts, formatTabular("duplicates", []string{"cluster", "similarity", "path", "start", "end", "tokens"}, dupRows))

	var issueRows [][]string
	for i := range r.Issues {
		is := &r.Issues[i]
		issueRows = append(issueRows, []string{
			is.Path,
			itoa(is.StartLine),
			is.RuleID,
			string(is.Category),
			string(is.Severity),
			is.Message,
		})
	}
	parts = append(parts, formatTabular("issues", []string{"path", "line", "rule", "category", "severity", "message"}, issueRows))

	if len(r.Errors) > 0 {
		var rows [][]string
		for _, e := range r.Errors {
			rows = append(rows, []string{e.Path, string(e.Stage), e.Message})
		}
		parts = append(parts, formatTabular("errors", []string{"path", "stage", "message"}, rows))
	}

	if len(r.Skipped) > 0 {
		var rows [][]string
		for _, s := range r.Skipped {
			rows = append(rows, []string{s.Path, string(s.Reason), s.Detail})
		}
		parts = append(parts, formatTabular("skipped", []string{"path", "reason", "detail"}, rows))
	}

	return strings.Join(parts, "\n")
}

func itoa(n int) string { return strconv.Itoa(n) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
