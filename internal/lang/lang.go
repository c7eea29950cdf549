// Package lang classifies files into supported languages and carries the
// per-language tree-sitter grammar and lexical conventions.
package lang

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codescope/internal/model"
)

// Language holds the configuration for one supported language.
type Language struct {
	Name       model.Language
	Extensions []string
	// Shebangs lists interpreter names recognized on a "#!" first line.
	Shebangs []string
	// grammars maps an extension to its grammar when one language spans
	// several (TypeScript vs TSX). The empty key is the default.
	grammars map[string]*sitter.Language

	// FunctionNodes are the node types that delimit function-level fragments.
	FunctionNodes map[string]bool
	// LineComments are line comment prefixes.
	LineComments []string
	// BlockComment is the open/close pair for block comments, if any.
	BlockComment [2]string
}

// Grammar returns the tree-sitter grammar for a file path, or nil.
func (l *Language) Grammar(path string) *sitter.Language {
	if g, ok := l.grammars[strings.ToLower(filepath.Ext(path))]; ok {
		return g
	}
	return l.grammars[""]
}

// NewParser creates a fresh tree-sitter parser for the given grammar.
// Each goroutine must use its own parser (not thread-safe).
func NewParser(g *sitter.Language) *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(g)
	return p
}

// IsLineComment reports whether trimmed starts with one of the language's
// comment markers.
func (l *Language) IsLineComment(trimmed string) bool {
	for _, p := range l.LineComments {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	if l.BlockComment[0] != "" && strings.HasPrefix(trimmed, l.BlockComment[0]) {
		return true
	}
	// Continuation lines of a /* */ block conventionally start with "*".
	return l.BlockComment[0] == "/*" && strings.HasPrefix(trimmed, "*")
}

// Languages maps language tags to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[model.Language]*Language{}

func register(l *Language) {
	Languages[l.Name] = l
}

// extensionMap and shebangMap are built lazily after all init() functions have run.
var (
	extensionMap map[string]model.Language
	shebangMap   map[string]model.Language
	mapsOnce     sync.Once
)

func buildMaps() {
	mapsOnce.Do(func() {
		extensionMap = make(map[string]model.Language)
		shebangMap = make(map[string]model.Language)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
			for _, s := range l.Shebangs {
				shebangMap[s] = l.Name
			}
		}
	})
}

// ForExtension returns the language for a file extension, or "" if unsupported.
func ForExtension(ext string) model.Language {
	buildMaps()
	return extensionMap[strings.ToLower(ext)]
}

// Classify maps a file to a language. The extension decides when present;
// files without one fall back to the interpreter named on a shebang line in
// head. Unrecognized files report false.
func Classify(path string, head []byte) (model.Language, bool) {
	if ext := filepath.Ext(path); ext != "" {
		l := ForExtension(ext)
		return l, l != ""
	}
	l := fromShebang(head)
	return l, l != ""
}

func fromShebang(head []byte) model.Language {
	if !bytes.HasPrefix(head, []byte("#!")) {
		return ""
	}
	line := head[2:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return ""
	}
	interp := filepath.Base(fields[0])
	if interp == "env" {
		// "#!/usr/bin/env -S python3 -u" style.
		interp = ""
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "-") && !strings.Contains(f, "=") {
				interp = f
				break
			}
		}
	}
	buildMaps()
	if l, ok := shebangMap[interp]; ok {
		return l
	}
	// python3.12, ruby2.7, php8 and friends.
	trimmed := strings.TrimRight(interp, "0123456789.")
	return shebangMap[trimmed]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func nodeSet(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

var cStyle = [2]string{"/*", "*/"}
