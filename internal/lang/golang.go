package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	register(&Language{
		Name:          model.Go,
		Extensions:    []string{".go"},
		grammars:      map[string]*sitter.Language{"": golang.GetLanguage()},
		FunctionNodes: nodeSet("function_declaration", "method_declaration", "func_literal"),
		LineComments:  []string{"//"},
		BlockComment:  cStyle,
	})
}
