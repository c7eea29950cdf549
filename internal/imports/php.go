package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	phpIncludeRe  = regexp.MustCompile(`^\s*(?:require|require_once|include|include_once)\b\s*\(?\s*(?:(?:__DIR__|dirname\(__FILE__\))\s*\.\s*)?['"]/?([^'"]+)['"]`)
	phpUseRe      = regexp.MustCompile(`^\s*use\s+(?:function\s+|const\s+)?\\?([\w\\]+)(?:\s+as\s+\w+)?\s*;`)
	phpGroupUseRe = regexp.MustCompile(`^\s*use\s+\\?([\w\\]+)\\\{([^}]*)\}\s*;`)
	phpNSRe       = regexp.MustCompile(`^\s*namespace\s+([\w\\]+)\s*[;{]`)
)

type phpExtractor struct{}

func (phpExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		for n, line := range codeLines(text, cBlock) {
			stmt := strings.TrimSpace(line)
			if m := phpIncludeRe.FindStringSubmatch(line); m != nil {
				if !yield(model.ImportToken{Raw: m[1], Line: n, Statement: stmt, Relative: true}) {
					return
				}
				continue
			}
			if m := phpGroupUseRe.FindStringSubmatch(line); m != nil {
				for _, part := range strings.Split(m[2], ",") {
					f := strings.Fields(part)
					if len(f) == 0 {
						continue
					}
					if !yield(model.ImportToken{Raw: m[1] + `\` + f[0], Line: n, Statement: stmt}) {
						return
					}
				}
				continue
			}
			if m := phpUseRe.FindStringSubmatch(line); m != nil {
				if !yield(model.ImportToken{Raw: m[1], Line: n, Statement: stmt}) {
					return
				}
			}
		}
	}
}

func (phpExtractor) DeclaredPackage(text []byte) string {
	return firstMatch(text, cBlock, phpNSRe)
}
