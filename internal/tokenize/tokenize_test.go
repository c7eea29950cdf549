package tokenize

import (
	"context"
	"strings"
	"testing"

	"github.com/phobologic/codescope/internal/lang"
	"github.com/phobologic/codescope/internal/model"
)

func tokenizeSource(t *testing.T, l model.Language, path, source string) *Stream {
	t.Helper()
	s, err := File(context.Background(), model.SourceUnit{Path: path, Language: l, Text: []byte(source)})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	return s
}

func norms(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.Norm
	}
	return strings.Join(parts, " ")
}

func TestPythonFunctionFragments(t *testing.T) {
	t.Parallel()

	source := `import os

def first(a, b):
    # adds things
    return a + b + 1

class Box:
    def second(self, name):
        return "hi " + name
`
	s := tokenizeSource(t, model.Python, "m.py", source)
	if s.Lexical {
		t.Fatal("expected tree-sitter tokens")
	}
	if len(s.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(s.Fragments))
	}

	f := s.Fragments[0]
	if f.StartLine != 3 || f.EndLine != 5 {
		t.Errorf("first fragment lines = %d-%d", f.StartLine, f.EndLine)
	}
	got := norms(f.Tokens)
	if got != "def ID ( ID , ID ) : return ID + ID + LIT" {
		t.Errorf("first fragment norms = %q", got)
	}
	if f.Tokens[1].Text != "first" {
		t.Errorf("identifier text = %q", f.Tokens[1].Text)
	}
	if f.Fragment.Tokens != len(f.Tokens) {
		t.Errorf("token count = %d, stream has %d", f.Fragment.Tokens, len(f.Tokens))
	}

	if !strings.Contains(norms(s.Fragments[1].Tokens), "return STR + ID") {
		t.Errorf("second fragment norms = %q", norms(s.Fragments[1].Tokens))
	}
}

func TestNestedFunctionsStayInOuterFragment(t *testing.T) {
	t.Parallel()

	source := `function outer(x) {
  const inner = (y) => y * 2;
  return inner(x);
}
`
	s := tokenizeSource(t, model.JavaScript, "a.js", source)
	if len(s.Fragments) != 1 {
		t.Fatalf("expected 1 outer fragment, got %d", len(s.Fragments))
	}
	if s.Fragments[0].StartLine != 1 || s.Fragments[0].EndLine != 4 {
		t.Errorf("unexpected span %d-%d", s.Fragments[0].StartLine, s.Fragments[0].EndLine)
	}
}

func TestRenamedIdentifiersNormalizeAlike(t *testing.T) {
	t.Parallel()

	a := tokenizeSource(t, model.Go, "a.go", "package a\n\nfunc Sum(xs []int) int {\n\ttotal := 0\n\tfor _, x := range xs {\n\t\ttotal += x\n\t}\n\treturn total\n}\n")
	b := tokenizeSource(t, model.Go, "b.go", "package b\n\n// Add adds.\nfunc Add(vals []int) int {\n\tacc := 0\n\tfor _, v := range vals {\n\t\tacc += v\n\t}\n\treturn acc\n}\n")
	if len(a.Fragments) != 1 || len(b.Fragments) != 1 {
		t.Fatalf("expected one fragment each, got %d and %d", len(a.Fragments), len(b.Fragments))
	}
	if norms(a.Fragments[0].Tokens) != norms(b.Fragments[0].Tokens) {
		t.Errorf("normalized streams differ:\n%s\n%s", norms(a.Fragments[0].Tokens), norms(b.Fragments[0].Tokens))
	}
}

func TestWholeFileFragment(t *testing.T) {
	t.Parallel()

	s := tokenizeSource(t, model.Python, "cfg.py", "A = 1\nB = 'two'\n")
	if len(s.Fragments) != 1 {
		t.Fatalf("expected whole-file fragment, got %d", len(s.Fragments))
	}
	f := s.Fragments[0]
	if f.StartByte != 0 || f.EndByte != len("A = 1\nB = 'two'\n") || f.StartLine != 1 || f.EndLine != 2 {
		t.Errorf("unexpected whole-file span %+v", f.Fragment)
	}
	if got := norms(f.Tokens); got != "ID = LIT ID = STR" {
		t.Errorf("norms = %q", got)
	}
}

func TestTSXGrammar(t *testing.T) {
	t.Parallel()

	s := tokenizeSource(t, model.TypeScript, "view.tsx", "export function View(p: Props) {\n  return <div>{p.name}</div>;\n}\n")
	if s.Lexical || len(s.Fragments) != 1 {
		t.Fatalf("expected one tree-sitter fragment, got lexical=%v n=%d", s.Lexical, len(s.Fragments))
	}
}

func TestEmptyUnit(t *testing.T) {
	t.Parallel()

	s := tokenizeSource(t, model.Ruby, "empty.rb", "")
	if len(s.Fragments) != 0 {
		t.Errorf("expected no fragments, got %d", len(s.Fragments))
	}
}

func TestUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, err := File(context.Background(), model.SourceUnit{Path: "x.cob", Language: "cobol", Text: []byte("x")})
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestLexicalFallback(t *testing.T) {
	t.Parallel()

	source := "/* header\n comment */\nint add(int a, int b) {\n  // sum\n  return a + b; // trailing\n}\nchar *s = \"x\\\"y\";\n"
	s := lexical(lang.Languages[model.C], model.SourceUnit{Path: "a.c", Text: []byte(source)})
	if !s.Lexical || len(s.Fragments) != 1 {
		t.Fatalf("expected one lexical fragment, got %+v", s)
	}
	got := norms(s.Fragments[0].Tokens)
	want := "ID ID ( ID ID , ID ID ) { return ID + ID ; } ID * ID = STR ;"
	if got != want {
		t.Errorf("norms = %q\nwant    %q", got, want)
	}
	if line := s.Fragments[0].Tokens[0].Line; line != 3 {
		t.Errorf("first token line = %d, want 3", line)
	}
}

func TestSyntaxErrorKeepsGrammar(t *testing.T) {
	t.Parallel()

	s := tokenizeSource(t, model.Python, "broken.py", "def ok(a):\n    return a + 1\n\ndef broken(:\n    pass\n")
	if s.Lexical {
		t.Fatal("a recoverable syntax error should not force the lexical scan")
	}
	if len(s.Fragments) == 0 || s.Fragments[0].StartLine != 1 {
		t.Errorf("expected the intact function as the first fragment, got %+v", s.Fragments)
	}
	if s.Tokens == 0 {
		t.Error("stream should count its tokens")
	}
}

func TestConcurrentParsers(t *testing.T) {
	t.Parallel()

	done := make(chan *Stream)
	for i := 0; i < 8; i++ {
		go func() {
			s, _ := File(context.Background(), model.SourceUnit{Path: "m.py", Language: model.Python, Text: []byte("def f(x):\n    return x\n")})
			done <- s
		}()
	}
	for i := 0; i < 8; i++ {
		if s := <-done; s == nil || len(s.Fragments) != 1 {
			t.Fatalf("unexpected stream %+v", s)
		}
	}
}
