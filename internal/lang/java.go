package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	register(&Language{
		Name:          model.Java,
		Extensions:    []string{".java"},
		grammars:      map[string]*sitter.Language{"": java.GetLanguage()},
		FunctionNodes: nodeSet("method_declaration", "constructor_declaration", "lambda_expression"),
		LineComments:  []string{"//"},
		BlockComment:  cStyle,
	})
}
