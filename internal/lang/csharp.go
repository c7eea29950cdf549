package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	register(&Language{
		Name:       model.CSharp,
		Extensions: []string{".cs"},
		Shebangs:   []string{"dotnet-script"},
		grammars:   map[string]*sitter.Language{"": csharp.GetLanguage()},
		FunctionNodes: nodeSet(
			"method_declaration",
			"constructor_declaration",
			"local_function_statement",
			"operator_declaration",
		),
		LineComments: []string{"//"},
		BlockComment: cStyle,
	})
}
