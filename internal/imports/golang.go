package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	goImportRe     = regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goImportOpenRe = regexp.MustCompile(`^\s*import\s*\(`)
	goSpecRe       = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	goPackageRe    = regexp.MustCompile(`^\s*package\s+(\w+)`)
)

type goExtractor struct{}

func (goExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		inGroup := false
		for n, line := range codeLines(text, cBlock) {
			code := trimTrailingComment(line, "//")
			var m []string
			switch {
			case inGroup:
				if strings.HasPrefix(strings.TrimSpace(code), ")") {
					inGroup = false
					continue
				}
				m = goSpecRe.FindStringSubmatch(code)
			case goImportOpenRe.MatchString(code):
				inGroup = true
				// import ( "fmt" ) on one line.
				rest := code[strings.Index(code, "(")+1:]
				if i := strings.Index(rest, ")"); i >= 0 {
					inGroup = false
					rest = rest[:i]
				}
				m = goSpecRe.FindStringSubmatch(rest)
			default:
				m = goImportRe.FindStringSubmatch(code)
			}
			if m == nil {
				continue
			}
			if !yield(model.ImportToken{Raw: m[1], Line: n, Statement: strings.TrimSpace(line)}) {
				return
			}
		}
	}
}

func (goExtractor) DeclaredPackage(text []byte) string {
	return firstMatch(text, cBlock, goPackageRe)
}
