// Package registry recognizes standard-library and third-party package names so
// the graph builder can tell an external dependency from a missing one.
package registry

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/codescope/internal/model"
)

//go:embed known.yaml
var knownYAML []byte

type knownEntry struct {
	Stdlib   []string `yaml:"stdlib"`
	Packages []string `yaml:"packages"`
}

var (
	defaultOnce  sync.Once
	defaultNames map[model.Language]map[string]struct{}
	defaultErr   error
)

func loadDefaults() (map[model.Language]map[string]struct{}, error) {
	defaultOnce.Do(func() {
		var raw map[model.Language]knownEntry
		if err := yaml.Unmarshal(knownYAML, &raw); err != nil {
			defaultErr = fmt.Errorf("parsing embedded registry: %w", err)
			return
		}
		defaultNames = make(map[model.Language]map[string]struct{}, len(raw))
		for l, e := range raw {
			set := make(map[string]struct{}, len(e.Stdlib)+len(e.Packages))
			for _, n := range e.Stdlib {
				set[strings.ToLower(n)] = struct{}{}
			}
			for _, n := range e.Packages {
				set[strings.ToLower(n)] = struct{}{}
			}
			defaultNames[l] = set
		}
	})
	return defaultNames, defaultErr
}

// GoModule is a module declared by a go.mod in the tree.
type GoModule struct {
	Dir  string // slash-separated directory holding go.mod, "." for the root
	Path string
}

// Registry answers whether an import names a known external package. It is
// safe for concurrent reads once built.
type Registry struct {
	names     map[model.Language]map[string]struct{}
	goModules []GoModule
}

// New returns a registry seeded with the embedded defaults.
func New() (*Registry, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}
	r := &Registry{names: make(map[model.Language]map[string]struct{}, len(defaults))}
	for l, set := range defaults {
		cp := make(map[string]struct{}, len(set))
		for n := range set {
			cp[n] = struct{}{}
		}
		r.names[l] = cp
	}
	return r, nil
}

// family folds languages that share an ecosystem.
func family(l model.Language) model.Language {
	switch l {
	case model.TypeScript:
		return model.JavaScript
	case model.CPP:
		return model.C
	}
	return l
}

// Add registers extra package names for a language.
func (r *Registry) Add(l model.Language, names ...string) {
	f := family(l)
	set := r.names[f]
	if set == nil {
		set = make(map[string]struct{})
		r.names[f] = set
	}
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
}

func (r *Registry) has(l model.Language, name string) bool {
	_, ok := r.names[family(l)][strings.ToLower(name)]
	return ok
}

// GoModules returns the modules declared in the tree, longest path first so
// callers can take the first prefix match.
func (r *Registry) GoModules() []GoModule {
	return r.goModules
}

func (r *Registry) addGoModule(m GoModule) {
	r.goModules = append(r.goModules, m)
	sort.SliceStable(r.goModules, func(i, j int) bool {
		return len(r.goModules[i].Path) > len(r.goModules[j].Path)
	})
}

// LocalGoModule returns the tree module that prefixes importPath.
func (r *Registry) LocalGoModule(importPath string) (GoModule, bool) {
	for _, m := range r.goModules {
		if importPath == m.Path || strings.HasPrefix(importPath, m.Path+"/") {
			return m, true
		}
	}
	return GoModule{}, false
}

// javaPrefixes and friends are reserved namespace roots: anything under them
// is external even when the exact package is not listed.
var (
	javaPrefixes   = []string{"java.", "javax.", "jakarta.", "jdk.", "sun.", "com.sun.", "android.", "androidx.", "kotlin."}
	csharpPrefixes = []string{"system", "microsoft", "windows"}
)

// IsExternal reports whether tok names a standard-library or third-party
// package for language l, either by a naming convention or by registry
// membership.
func (r *Registry) IsExternal(l model.Language, tok model.ImportToken) bool {
	raw := tok.Raw
	switch family(l) {
	case model.Python:
		if tok.Relative || strings.HasPrefix(raw, ".") {
			return false
		}
		return r.has(l, firstSegment(raw, "."))

	case model.JavaScript:
		if tok.Relative {
			return false
		}
		if strings.HasPrefix(raw, "node:") || strings.HasPrefix(raw, "@") {
			return true
		}
		return r.has(l, firstSegment(raw, "/"))

	case model.Java:
		for _, p := range javaPrefixes {
			if strings.HasPrefix(raw, p) {
				return true
			}
		}
		return r.hasDottedPrefix(l, raw)

	case model.CSharp:
		lower := strings.ToLower(raw)
		for _, p := range csharpPrefixes {
			if lower == p || strings.HasPrefix(lower, p+".") {
				return true
			}
		}
		return r.hasDottedPrefix(l, raw)

	case model.C:
		if tok.System {
			return true
		}
		return r.has(l, raw) || r.has(l, firstSegment(raw, "/"))

	case model.Go:
		if _, local := r.LocalGoModule(raw); local {
			return false
		}
		// Outside the tree's own modules a path is either stdlib or a
		// fetched module.
		return true

	case model.Ruby:
		if tok.Relative {
			return false
		}
		return r.has(l, raw) || r.has(l, firstSegment(raw, "/"))

	case model.PHP:
		if strings.Contains(raw, `\`) {
			return r.has(l, firstSegment(raw, `\`))
		}
		return r.has(l, firstSegment(raw, "/"))
	}
	return false
}

func (r *Registry) hasDottedPrefix(l model.Language, raw string) bool {
	parts := strings.Split(raw, ".")
	for i := range parts {
		if r.has(l, strings.Join(parts[:i+1], ".")) {
			return true
		}
	}
	return false
}

func firstSegment(s, sep string) string {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}
