package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var rubyRequireRe = regexp.MustCompile(`^\s*(require_relative|require|load|autoload\s+:\w+\s*,)\s*\(?\s*['"]([^'"]+)['"]`)

type rubyExtractor struct{}

func (rubyExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		for n, line := range codeLines(text, rubyBlock) {
			m := rubyRequireRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			tok := model.ImportToken{
				Raw:       m[2],
				Line:      n,
				Statement: strings.TrimSpace(line),
				Relative:  m[1] == "require_relative" || isRelativeSpecifier(m[2]),
			}
			if !yield(tok) {
				return
			}
		}
	}
}
