package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	javaImportRe  = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w$]+(?:\.[\w$]+)*(?:\.\*)?)\s*;`)
	javaPackageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)
)

type javaExtractor struct{}

func (javaExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		for n, line := range codeLines(text, cBlock) {
			m := javaImportRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if !yield(model.ImportToken{Raw: m[1], Line: n, Statement: strings.TrimSpace(line)}) {
				return
			}
		}
	}
}

func (javaExtractor) DeclaredPackage(text []byte) string {
	return firstMatch(text, cBlock, javaPackageRe)
}

// firstMatch returns the first submatch of re over the code lines of text.
func firstMatch(text []byte, blocks delimiters, re *regexp.Regexp) string {
	for _, line := range codeLines(text, blocks) {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}
