package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	// Statement-form "using (...)" and "using var x = ..." never match: the
	// target must be a bare dotted name directly followed by ';'.
	usingRe     = regexp.MustCompile(`^\s*(?:global\s+)?using\s+(?:static\s+)?(?:\w+\s*=\s*)?([\w.]+)(?:<[^;]*>)?\s*;`)
	namespaceRe = regexp.MustCompile(`^\s*namespace\s+([\w.]+)`)
)

type csharpExtractor struct{}

func (csharpExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		for n, line := range codeLines(text, cBlock) {
			m := usingRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if !yield(model.ImportToken{Raw: m[1], Line: n, Statement: strings.TrimSpace(line)}) {
				return
			}
		}
	}
}

func (csharpExtractor) DeclaredPackage(text []byte) string {
	return firstMatch(text, cBlock, namespaceRe)
}
