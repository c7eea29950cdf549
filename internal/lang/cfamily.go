package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	// .h is ambiguous between C and C++; treat it as C.
	register(&Language{
		Name:          model.C,
		Extensions:    []string{".c", ".h"},
		grammars:      map[string]*sitter.Language{"": c.GetLanguage()},
		FunctionNodes: nodeSet("function_definition"),
		LineComments:  []string{"//"},
		BlockComment:  cStyle,
	})
	register(&Language{
		Name:          model.CPP,
		Extensions:    []string{".cpp", ".cc", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".ixx"},
		grammars:      map[string]*sitter.Language{"": cpp.GetLanguage()},
		FunctionNodes: nodeSet("function_definition", "lambda_expression"),
		LineComments:  []string{"//"},
		BlockComment:  cStyle,
	})
}
