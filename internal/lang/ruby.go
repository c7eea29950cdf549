package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/phobologic/codescope/internal/model"
)

func init() {
	register(&Language{
		Name:          model.Ruby,
		Extensions:    []string{".rb", ".rake", ".gemspec"},
		Shebangs:      []string{"ruby", "jruby"},
		grammars:      map[string]*sitter.Language{"": ruby.GetLanguage()},
		FunctionNodes: nodeSet("method", "singleton_method"),
		LineComments:  []string{"#"},
		BlockComment:  [2]string{"=begin", "=end"},
	})
}
