package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	includeRe = regexp.MustCompile(`^\s*#\s*include\s*([<"])([^>"]+)[>"]`)
	// C++20 header units and named modules.
	cxxImportRe = regexp.MustCompile(`^\s*(?:export\s+)?import\s+(?:([<"])([^>"]+)[>"]|([\w.:]+))\s*;`)
)

// cExtractor covers C and C++.
type cExtractor struct{}

func (cExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		for n, line := range codeLines(text, cBlock) {
			tok := model.ImportToken{Line: n, Statement: strings.TrimSpace(line)}
			if m := includeRe.FindStringSubmatch(line); m != nil {
				tok.Raw = strings.TrimSpace(m[2])
				tok.System = m[1] == "<"
				tok.Relative = !tok.System
			} else if m := cxxImportRe.FindStringSubmatch(line); m != nil {
				if m[3] != "" {
					tok.Raw = m[3]
				} else {
					tok.Raw = strings.TrimSpace(m[2])
					tok.System = m[1] == "<"
					tok.Relative = !tok.System
				}
			} else {
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
}
