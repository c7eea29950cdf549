package imports

import (
	"iter"
	"regexp"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

var (
	pyImportRe = regexp.MustCompile(`^\s*import\s+([\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*)`)
	pyFromRe   = regexp.MustCompile(`^\s*from\s+(\.+[\w.]*|[\w.]+)\s+import\s+(.*)$`)
)

type pythonExtractor struct{}

func (pythonExtractor) Extract(text []byte) iter.Seq[model.ImportToken] {
	return func(yield func(model.ImportToken) bool) {
		// A parenthesized from-import still collecting names.
		var pending *model.ImportToken

		for n, line := range codeLines(text, pythonBlock) {
			code := trimTrailingComment(line, "#")

			if pending != nil {
				names, done := pyNames(code)
				pending.Names = append(pending.Names, names...)
				if done {
					if !yield(*pending) {
						return
					}
					pending = nil
				}
				continue
			}

			if m := pyFromRe.FindStringSubmatch(code); m != nil {
				tok := model.ImportToken{
					Raw:       m[1],
					Line:      n,
					Statement: strings.TrimSpace(line),
					Relative:  strings.HasPrefix(m[1], "."),
				}
				rest := strings.TrimSpace(m[2])
				if strings.HasPrefix(rest, "(") {
					names, done := pyNames(rest[1:])
					tok.Names = names
					if !done {
						pending = &tok
						continue
					}
				} else {
					tok.Names, _ = pyNames(strings.TrimSuffix(rest, "\\"))
				}
				if !yield(tok) {
					return
				}
				continue
			}

			if m := pyImportRe.FindStringSubmatch(code); m != nil {
				for _, part := range strings.Split(m[1], ",") {
					mod := strings.Fields(part)
					if len(mod) == 0 {
						continue
					}
					tok := model.ImportToken{Raw: mod[0], Line: n, Statement: strings.TrimSpace(line)}
					if !yield(tok) {
						return
					}
				}
			}
		}

		// Unterminated parenthesized import at EOF: keep what was collected.
		if pending != nil {
			yield(*pending)
		}
	}
}

// pyNames parses the name list of a from-import. closed reports whether a
// closing parenthesis was seen.
func pyNames(s string) (names []string, closed bool) {
	if i := strings.Index(s, ")"); i >= 0 {
		s, closed = s[:i], true
	}
	for _, part := range strings.Split(s, ",") {
		f := strings.Fields(part)
		if len(f) == 0 || f[0] == "*" {
			continue
		}
		names = append(names, f[0])
	}
	return names, closed
}
