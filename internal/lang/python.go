package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	register(&Language{
		Name:          model.Python,
		Extensions:    []string{".py", ".pyw"},
		Shebangs:      []string{"python", "python2", "python3", "pypy", "pypy3"},
		grammars:      map[string]*sitter.Language{"": python.GetLanguage()},
		FunctionNodes: nodeSet("function_definition"),
		LineComments:  []string{"#"},
	})
}
