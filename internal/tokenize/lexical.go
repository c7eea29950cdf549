package tokenize

import (
	"bytes"

	"github.com/phobologic/codescope/internal/lang"
	"github.com/phobologic/codescope/internal/model"
)

var keywords = map[string]bool{
	"func": true, "return": true, "if": true, "else": true, "for": true,
	"range": true, "switch": true, "case": true, "default": true, "break": true,
	"continue": true, "defer": true, "go": true, "select": true, "struct": true,
	"interface": true, "type": true, "var": true, "const": true, "package": true,
	"import": true, "def": true, "class": true, "elif": true, "try": true,
	"except": true, "finally": true, "with": true, "lambda": true, "yield": true,
	"raise": true, "pass": true, "and": true, "or": true, "not": true, "is": true,
	"in": true, "from": true, "function": true, "new": true, "this": true,
	"self": true, "super": true, "extends": true, "implements": true, "throw": true,
	"throws": true, "catch": true, "while": true, "do": true, "static": true,
	"public": true, "private": true, "protected": true, "void": true, "let": true,
	"end": true, "begin": true, "module": true, "use": true, "namespace": true,
	"using": true, "async": true, "await": true, "export": true,
}

var literalWords = map[string]bool{
	"true": true, "false": true, "null": true, "nil": true, "None": true,
	"True": true, "False": true, "undefined": true,
}

// Multi-character operators, longest first.
var operators = []string{
	"<<=", ">>=", "...", "===", "!==", "**=",
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "+=", "-=", "*=", "/=",
	"%=", "&=", "|=", "^=", "++", "--", "->", "=>", "::", "..", "??", "**",
}

// lexical tokenizes without a grammar. Its single fragment spans the file.
func lexical(l *lang.Language, unit model.SourceUnit) *Stream {
	src := unit.Text
	var tokens []Token
	line := 1
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			i++
		case hasBlockOpen(l, src[i:]):
			end := bytes.Index(src[i+len(l.BlockComment[0]):], []byte(l.BlockComment[1]))
			next := len(src)
			if end >= 0 {
				next = i + len(l.BlockComment[0]) + end + len(l.BlockComment[1])
			}
			line += bytes.Count(src[i:next], []byte("\n"))
			i = next
		case hasLineComment(l, src[i:]):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'' || c == '`':
			start := i
			i = skipQuoted(src, i)
			tokens = append(tokens, Token{Norm: String, Line: line})
			line += bytes.Count(src[start:i], []byte("\n"))
		case isDigit(c):
			for i < len(src) && (isIdentChar(src[i]) || src[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{Norm: Literal, Line: line})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			word := string(src[start:i])
			switch {
			case keywords[word]:
				tokens = append(tokens, Token{Norm: word, Line: line})
			case literalWords[word]:
				tokens = append(tokens, Token{Norm: Literal, Line: line})
			default:
				tokens = append(tokens, Token{Norm: Ident, Text: word, Line: line})
			}
		default:
			op := string(c)
			for _, o := range operators {
				if bytes.HasPrefix(src[i:], []byte(o)) {
					op = o
					break
				}
			}
			tokens = append(tokens, Token{Norm: op, Line: line})
			i += len(op)
		}
	}

	s := &Stream{Path: unit.Path, Lexical: true, Tokens: len(tokens)}
	if len(tokens) > 0 {
		s.Fragments = []Fragment{wholeFile(unit.Path, src, tokens)}
	}
	return s
}

func hasBlockOpen(l *lang.Language, rest []byte) bool {
	return l.BlockComment[0] != "" && bytes.HasPrefix(rest, []byte(l.BlockComment[0]))
}

func hasLineComment(l *lang.Language, rest []byte) bool {
	for _, p := range l.LineComments {
		if bytes.HasPrefix(rest, []byte(p)) {
			return true
		}
	}
	return false
}

// skipQuoted returns the index just past the string starting at i.
func skipQuoted(src []byte, i int) int {
	quote := src[i]
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		case '\n':
			if quote != '`' {
				return i
			}
		}
		i++
	}
	return len(src)
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$' || c >= 0x80 }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
