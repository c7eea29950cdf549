// Package tokenize turns a source unit into a normalized token stream split
// into function-level fragments, the input of duplicate detection.
package tokenize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codescope/internal/lang"
	"github.com/phobologic/codescope/internal/model"
)

// Normalized classes for tokens whose text does not matter structurally.
const (
	Ident   = "ID"
	String  = "STR"
	Literal = "LIT"
)

// Token is one normalized token.
type Token struct {
	Norm string // ID, STR, LIT, or the node type / operator text
	Text string // original text, kept for identifiers only
	Line int
}

// Fragment is a located slice of a unit's token stream.
type Fragment struct {
	model.Fragment
	Tokens []Token
}

// Stream is the tokenized form of one unit.
type Stream struct {
	Path      string
	Fragments []Fragment
	// Tokens counts every token in the unit, inside fragments or not.
	Tokens int
	// Lexical is set when the grammar could not be used.
	Lexical bool
}

// File tokenizes unit with its tree-sitter grammar, or with a lexical scan
// when the language has no grammar for the file. Syntax errors do not force
// the fallback: tree-sitter recovers and the walk keeps the tokens it finds.
func File(ctx context.Context, unit model.SourceUnit) (*Stream, error) {
	l := lang.Languages[unit.Language]
	if l == nil {
		return nil, fmt.Errorf("tokenize %s: unsupported language %q", unit.Path, unit.Language)
	}
	if len(unit.Text) == 0 {
		return &Stream{Path: unit.Path}, nil
	}

	if g := l.Grammar(unit.Path); g != nil {
		s, err := parseTree(ctx, l, g, unit)
		if err == nil {
			return s, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
	return lexical(l, unit), nil
}

var (
	poolsMu sync.Mutex
	pools   = map[*sitter.Language]*sync.Pool{}
)

// parserPool returns the pool of parsers for g. Parsers are not safe for
// concurrent use; a pooled parser belongs to one goroutine at a time.
func parserPool(g *sitter.Language) *sync.Pool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[g]
	if !ok {
		p = &sync.Pool{New: func() any { return lang.NewParser(g) }}
		pools[g] = p
	}
	return p
}

func parseTree(ctx context.Context, l *lang.Language, g *sitter.Language, unit model.SourceUnit) (*Stream, error) {
	pool := parserPool(g)
	parser := pool.Get().(*sitter.Parser)
	tree, err := parser.ParseCtx(ctx, nil, unit.Text)
	if err != nil {
		// A parser interrupted mid-parse keeps partial state; drop it.
		parser.Close()
		return nil, err
	}
	pool.Put(parser)
	defer tree.Close()

	w := walker{lang: l, src: unit.Text, path: unit.Path}
	w.walk(tree.RootNode())
	return &Stream{Path: unit.Path, Fragments: w.finish(), Tokens: len(w.tokens)}, nil
}

type walker struct {
	lang      *lang.Language
	src       []byte
	path      string
	tokens    []Token
	fragments []Fragment
	inFn      bool
}

func (w *walker) walk(n *sitter.Node) {
	t := n.Type()
	if strings.Contains(t, "comment") {
		return
	}

	outer := !w.inFn && w.lang.FunctionNodes[t]
	first := len(w.tokens)
	if outer {
		w.inFn = true
	}

	if n.ChildCount() == 0 || isString(t) {
		w.emit(n)
	} else {
		for i := 0; i < int(n.ChildCount()); i++ {
			w.walk(n.Child(i))
		}
	}

	if outer {
		w.inFn = false
		w.fragments = append(w.fragments, Fragment{
			Fragment: model.Fragment{
				Path:      w.path,
				StartByte: int(n.StartByte()),
				EndByte:   int(n.EndByte()),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
				Tokens:    len(w.tokens) - first,
			},
			Tokens: w.tokens[first:len(w.tokens):len(w.tokens)],
		})
	}
}

func (w *walker) emit(n *sitter.Node) {
	t := n.Type()
	if n.StartByte() == n.EndByte() {
		// Zero-width nodes: automatic semicolons, missing tokens.
		return
	}
	tok := Token{Norm: t, Line: int(n.StartPoint().Row) + 1}
	if n.IsNamed() {
		switch {
		case isString(t):
			tok.Norm = String
		case isLiteral(t):
			tok.Norm = Literal
		case isIdentifier(t):
			tok.Norm = Ident
			tok.Text = lang.NodeText(n, w.src)
		}
	}
	w.tokens = append(w.tokens, tok)
}

// finish returns the function fragments, or one whole-file fragment when the
// unit declares none.
func (w *walker) finish() []Fragment {
	if len(w.fragments) > 0 {
		return w.fragments
	}
	if len(w.tokens) == 0 {
		return nil
	}
	return []Fragment{wholeFile(w.path, w.src, w.tokens)}
}

func wholeFile(path string, src []byte, tokens []Token) Fragment {
	return Fragment{
		Fragment: model.Fragment{
			Path:      path,
			StartByte: 0,
			EndByte:   len(src),
			StartLine: 1,
			EndLine:   tokens[len(tokens)-1].Line,
			Tokens:    len(tokens),
		},
		Tokens: tokens,
	}
}

func isString(t string) bool {
	switch t {
	case "char_literal", "character_literal", "rune_literal", "heredoc", "heredoc_body", "nowdoc", "regex":
		return true
	}
	return strings.Contains(t, "string") && !strings.HasSuffix(t, "_type")
}

func isLiteral(t string) bool {
	switch t {
	case "number", "integer", "float", "true", "false", "null", "nil", "none", "None",
		"undefined", "boolean", "decimal", "imaginary_literal":
		return true
	}
	return strings.HasSuffix(t, "_literal")
}

func isIdentifier(t string) bool {
	switch t {
	case "name", "constant", "simple_identifier":
		return true
	}
	return strings.HasSuffix(t, "identifier")
}
