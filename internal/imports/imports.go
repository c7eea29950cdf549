// Package imports extracts import, include, using, and require statements from
// source text. Extraction is lexical: each language strategy anchors its
// patterns at statement start and never builds an AST, so unusual syntax may be
// missed but stray matches inside expressions are rare.
package imports

import (
	"bytes"
	"iter"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

// Extractor pulls import tokens out of a single file's text. The returned
// sequence is lazy and restartable: each iteration rescans text.
type Extractor interface {
	Extract(text []byte) iter.Seq[model.ImportToken]
}

// PackageDeclarer is implemented by extractors for languages whose files
// declare the package or namespace they belong to.
type PackageDeclarer interface {
	DeclaredPackage(text []byte) string
}

var extractors = map[model.Language]Extractor{
	model.Python:     pythonExtractor{},
	model.JavaScript: ecmaExtractor{},
	model.TypeScript: ecmaExtractor{},
	model.Java:       javaExtractor{},
	model.C:          cExtractor{},
	model.CPP:        cExtractor{},
	model.CSharp:     csharpExtractor{},
	model.Go:         goExtractor{},
	model.Ruby:       rubyExtractor{},
	model.PHP:        phpExtractor{},
}

// For returns the extractor for a language, or nil if none exists.
func For(l model.Language) Extractor {
	return extractors[l]
}

// All drains an extractor into a slice.
func All(e Extractor, text []byte) []model.ImportToken {
	var out []model.ImportToken
	for tok := range e.Extract(text) {
		out = append(out, tok)
	}
	return out
}

// delimiters lists open/close pairs whose contents are not code.
type delimiters [][2]string

var (
	cBlock      = delimiters{{"/*", "*/"}}
	pythonBlock = delimiters{{`"""`, `"""`}, {"'''", "'''"}}
	rubyBlock   = delimiters{{"=begin", "=end"}}
)

// codeLines yields each 1-based line number with the text of block comments
// (or block strings) blanked out. A line that is entirely inside a block
// yields an empty string.
func codeLines(text []byte, blocks delimiters) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		var closing string
		lineNo := 0
		for len(text) > 0 {
			lineNo++
			var line []byte
			if i := bytes.IndexByte(text, '\n'); i >= 0 {
				line, text = text[:i], text[i+1:]
			} else {
				line, text = text, nil
			}
			code, still := stripBlocks(string(bytes.TrimRight(line, "\r")), closing, blocks)
			closing = still
			if !yield(lineNo, code) {
				return
			}
		}
	}
}

// stripBlocks removes block-delimited regions from line. closing is the
// delimiter that ends a block still open from a previous line. It returns the
// remaining code and the delimiter still pending at end of line.
func stripBlocks(line, closing string, blocks delimiters) (string, string) {
	var b strings.Builder
	rest := line
	for {
		if closing != "" {
			i := strings.Index(rest, closing)
			if i < 0 {
				return b.String(), closing
			}
			rest = rest[i+len(closing):]
			closing = ""
			b.WriteByte(' ')
			continue
		}
		at, which := -1, -1
		for k, d := range blocks {
			if i := strings.Index(rest, d[0]); i >= 0 && (at < 0 || i < at) {
				at, which = i, k
			}
		}
		if at < 0 {
			b.WriteString(rest)
			return b.String(), ""
		}
		b.WriteString(rest[:at])
		rest = rest[at+len(blocks[which][0]):]
		closing = blocks[which][1]
	}
}

func trimTrailingComment(s, marker string) string {
	if i := strings.Index(s, marker); i >= 0 {
		return s[:i]
	}
	return s
}
