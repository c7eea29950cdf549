package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	register(&Language{
		Name:          model.PHP,
		Extensions:    []string{".php", ".phtml"},
		Shebangs:      []string{"php"},
		grammars:      map[string]*sitter.Language{"": php.GetLanguage()},
		FunctionNodes: nodeSet("function_definition", "method_declaration", "anonymous_function_creation_expression"),
		LineComments:  []string{"//", "#"},
		BlockComment:  cStyle,
	})
}
