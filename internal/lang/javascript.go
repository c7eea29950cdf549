package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/phobologic/codescope/internal/model"
)

var ecmaFunctionNodes = nodeSet(
	"function_declaration",
	"generator_function_declaration",
	"function_expression",
	"function",
	"arrow_function",
	"method_definition",
)

func init() {
	register(&Language{
		Name:          model.JavaScript,
		Extensions:    []string{".js", ".jsx", ".mjs", ".cjs"},
		Shebangs:      []string{"node", "nodejs", "deno", "bun"},
		grammars:      map[string]*sitter.Language{"": javascript.GetLanguage()},
		FunctionNodes: ecmaFunctionNodes,
		LineComments:  []string{"//"},
		BlockComment:  cStyle,
	})
	register(&Language{
		Name:       model.TypeScript,
		Extensions: []string{".ts", ".tsx", ".mts", ".cts"},
		Shebangs:   []string{"ts-node", "tsx"},
		grammars: map[string]*sitter.Language{
			"":     typescript.GetLanguage(),
			".tsx": tsx.GetLanguage(),
		},
		FunctionNodes: ecmaFunctionNodes,
		LineComments:  []string{"//"},
		BlockComment:  cStyle,
	})
}
