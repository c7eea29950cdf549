package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	esPatterns = []*regexp.Regexp{
		// import 'side-effect'
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
		// import x, {a as b} from 'mod' / import * as ns from 'mod' / import type {T} from 'mod'
		regexp.MustCompile(`^\s*import\s+(?:type\s+)?[\w$*{}\s,]+?\s+from\s*['"]([^'"]+)['"]`),
		// export {a} from 'mod' / export * as ns from 'mod'
		regexp.MustCompile(`^\s*export\s+(?:type\s+)?(?:\*|\{[^}]*\})(?:\s+as\s+[\w$]+)?\s*from\s*['"]([^'"]+)['"]`),
		// import fs = require('fs')
		regexp.MustCompile(`^\s*(?:export\s+)?import\s+[\w$]+\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)`),
		// const x = require('mod') / const {a} = await import('mod')
		regexp.MustCompile(`^\s*(?:const|let|var)\s+[^=]+=\s*(?:require|(?:await\s+)?import)\(\s*['"]([^'"]+)['"]\s*\)`),
		// require('mod')
		regexp.MustCompile(`^\s*require\(\s*['"]([^'"]+)['"]\s*\)`),
	}
	esOpenBraceRe = regexp.MustCompile(`^\s*(?:import|export)\s+(?:type\s+)?(?:[\w$]+\s*,\s*)?\{[^}]*$`)
	esCloseFromRe = regexp.MustCompile(`\}\s*from\s*['"]([^'"]+)['"]`)
)

// ecmaExtractor covers JavaScript and TypeScript.
type ecmaExtractor struct{}

func (ecmaExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		pendingLine := 0
		var pendingStmt string

		for n, line := range codeLines(text, cBlock) {
			if pendingLine > 0 {
				if m := esCloseFromRe.FindStringSubmatch(line); m != nil {
					tok := model.ImportToken{Raw: m[1], Line: pendingLine, Statement: pendingStmt}
					tok.Relative = isRelativeSpecifier(m[1])
					if !yield(tok) {
						return
					}
					pendingLine = 0
				} else if strings.Contains(line, "}") {
					// Closed without a source: a local export list.
					pendingLine = 0
				}
				continue
			}

			if esOpenBraceRe.MatchString(line) {
				pendingLine, pendingStmt = n, strings.TrimSpace(line)
				continue
			}

			for _, re := range esPatterns {
				m := re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				tok := model.ImportToken{
					Raw:       m[1],
					Line:      n,
					Statement: strings.TrimSpace(line),
					Relative:  isRelativeSpecifier(m[1]),
				}
				if !yield(tok) {
					return
				}
				break
			}
		}
	}
}

func isRelativeSpecifier(s string) bool {
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}
