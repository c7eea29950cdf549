package quality

import (
	"bytes"
	"cmp"
	"slices"
	"sort"
	"strings"

	"github.com/phobologic/codescope/internal/lang"
	"github.com/phobologic/codescope/internal/model"
)

// Scanner runs the enabled rules over single units. It holds no per-scan
// state and may be shared between goroutines.
type Scanner struct {
	byLang map[model.Language][]*Rule
}

// NewScanner compiles the registry's rules in the enabled categories. An
// empty categories list enables every category.
func NewScanner(reg *Registry, categories []model.Category) (*Scanner, error) {
	enabled := func(c model.Category) bool {
		return len(categories) == 0 || slices.Contains(categories, c)
	}
	s := &Scanner{byLang: make(map[model.Language][]*Rule)}
	for _, l := range model.AllLanguages {
		for _, r := range reg.Rules(l) {
			if !enabled(r.Category) {
				continue
			}
			if err := r.compile(); err != nil {
				return nil, err
			}
			s.byLang[l] = append(s.byLang[l], r)
		}
	}
	return s, nil
}

// Scan returns the issues found in unit, ordered by line then rule.
func (s *Scanner) Scan(unit model.SourceUnit) []model.QualityIssue {
	rules := s.byLang[unit.Language]
	if len(rules) == 0 || len(unit.Text) == 0 {
		return nil
	}
	l := lang.Languages[unit.Language]

	var issues []model.QualityIssue
	var lineRules, fileRules []*Rule
	for _, r := range rules {
		if r.Scope == ScopeFile {
			fileRules = append(fileRules, r)
		} else {
			lineRules = append(lineRules, r)
		}
	}

	if len(lineRules) > 0 {
		n := 0
		for line := range bytes.Lines(unit.Text) {
			n++
			line = bytes.TrimRight(line, "\r\n")
			comment := l != nil && l.IsLineComment(strings.TrimSpace(string(line)))
			for _, r := range lineRules {
				if comment && !r.IncludeComments {
					continue
				}
				m := r.re.FindSubmatchIndex(line)
				if m == nil || (r.neg != nil && r.neg.Match(line)) {
					continue
				}
				issues = append(issues, r.issue(unit.Path, n, n, line, m))
			}
		}
	}

	if len(fileRules) > 0 {
		starts := lineStarts(unit.Text)
		for _, r := range fileRules {
			for _, m := range r.re.FindAllSubmatchIndex(unit.Text, -1) {
				if r.neg != nil && r.neg.Match(unit.Text[m[0]:m[1]]) {
					continue
				}
				end := m[1]
				if end > m[0] {
					end-- // a match ending in "\n" belongs to that line
				}
				issues = append(issues, r.issue(unit.Path, lineOf(starts, m[0]), lineOf(starts, end), unit.Text, m))
			}
		}
	}

	slices.SortStableFunc(issues, func(a, b model.QualityIssue) int {
		if c := cmp.Compare(a.StartLine, b.StartLine); c != 0 {
			return c
		}
		return cmp.Compare(a.RuleID, b.RuleID)
	})
	return issues
}

func (r *Rule) issue(path string, start, end int, src []byte, m []int) model.QualityIssue {
	msg := r.Message
	if strings.Contains(msg, "$") {
		msg = string(r.re.Expand(nil, []byte(msg), src, m))
	}
	return model.QualityIssue{
		Path:      path,
		RuleID:    r.ID,
		StartLine: start,
		EndLine:   end,
		Category:  r.Category,
		Severity:  r.Severity,
		Message:   msg,
	}
}

func lineStarts(text []byte) []int {
	starts := []int{0}
	for i, b := range text {
		if b == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf maps a byte offset to its 1-based line.
func lineOf(starts []int, off int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > off })
}

var severityWeight = map[model.Severity]float64{
	model.Critical: 4,
	model.High:     2,
	model.Medium:   1,
	model.Low:      0.25,
}

// Score rates a file from 0 (worst) to 10 (no issues).
func Score(issues []model.QualityIssue) float64 {
	score := 10.0
	for _, is := range issues {
		score -= severityWeight[is.Severity]
	}
	return max(score, 0)
}
