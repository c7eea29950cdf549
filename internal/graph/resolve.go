package graph

import (
	"path"
	"slices"
	"strings"

	"github.com/phobologic/codescope/internal/imports"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/registry"
)

var ecmaExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".d.ts"}

// fileIndex answers path lookups over the collected units.
type fileIndex struct {
	lang     map[string]model.Language
	byBase   map[string][]string
	byDir    map[string][]string
	declared map[model.Language]map[string][]string // package/namespace → files
}

func newFileIndex(units []model.SourceUnit) *fileIndex {
	ix := &fileIndex{
		lang:     make(map[string]model.Language, len(units)),
		byBase:   make(map[string][]string),
		byDir:    make(map[string][]string),
		declared: make(map[model.Language]map[string][]string),
	}
	for _, u := range units {
		ix.lang[u.Path] = u.Language
		ix.byBase[path.Base(u.Path)] = append(ix.byBase[path.Base(u.Path)], u.Path)
		ix.byDir[path.Dir(u.Path)] = append(ix.byDir[path.Dir(u.Path)], u.Path)
		if pd, ok := imports.For(u.Language).(imports.PackageDeclarer); ok {
			if pkg := pd.DeclaredPackage(u.Text); pkg != "" {
				fam := family(u.Language)
				if ix.declared[fam] == nil {
					ix.declared[fam] = make(map[string][]string)
				}
				ix.declared[fam][pkg] = append(ix.declared[fam][pkg], u.Path)
			}
		}
	}
	for _, m := range []map[string][]string{ix.byBase, ix.byDir} {
		for k := range m {
			slices.Sort(m[k])
		}
	}
	for _, m := range ix.declared {
		for k := range m {
			slices.Sort(m[k])
		}
	}
	return ix
}

func family(l model.Language) model.Language {
	switch l {
	case model.TypeScript:
		return model.JavaScript
	case model.CPP:
		return model.C
	}
	return l
}

func (ix *fileIndex) exists(p string) bool {
	_, ok := ix.lang[p]
	return ok
}

// suffix returns files whose path is rel or ends with "/"+rel.
func (ix *fileIndex) suffix(rel string) []string {
	rel = strings.TrimPrefix(path.Clean(rel), "/")
	var out []string
	for _, p := range ix.byBase[path.Base(rel)] {
		if p == rel || strings.HasSuffix(p, "/"+rel) {
			out = append(out, p)
		}
	}
	return out
}

// dirSuffix returns directories equal to rel or ending with "/"+rel.
func (ix *fileIndex) dirSuffix(rel string) []string {
	var out []string
	for d := range ix.byDir {
		if d == rel || strings.HasSuffix(d, "/"+rel) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

// resolution is the outcome of applying a language's rules to one token.
type resolution struct {
	targets    []string
	candidates []string // set when the best match is a tie
}

func found(targets ...string) resolution { return resolution{targets: targets} }

// pick chooses among the candidates of a single-target rule: the fewest
// directory hops from the importer wins, and a tie is ambiguous.
func pick(from string, cands []string) resolution {
	switch len(cands) {
	case 0:
		return resolution{}
	case 1:
		return found(cands[0])
	}
	fromDir := path.Dir(from)
	best := -1
	var tied []string
	for _, c := range cands {
		d := hops(fromDir, path.Dir(c))
		switch {
		case best < 0 || d < best:
			best, tied = d, []string{c}
		case d == best:
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return found(tied[0])
	}
	slices.Sort(tied)
	return resolution{candidates: tied}
}

// hops is the number of directory steps between two directories.
func hops(a, b string) int {
	as, bs := splitDir(a), splitDir(b)
	common := 0
	for common < len(as) && common < len(bs) && as[common] == bs[common] {
		common++
	}
	return len(as) + len(bs) - 2*common
}

func splitDir(d string) []string {
	if d == "." || d == "" {
		return nil
	}
	return strings.Split(d, "/")
}

func (r resolution) empty() bool { return len(r.targets) == 0 && len(r.candidates) == 0 }

// firstOf returns the first non-empty resolution.
func firstOf(steps ...func() resolution) resolution {
	for _, s := range steps {
		if r := s(); !r.empty() {
			return r
		}
	}
	return resolution{}
}

type resolver struct {
	ix  *fileIndex
	reg *registry.Registry
}

func (r *resolver) resolve(from string, tok model.ImportToken) resolution {
	switch r.ix.lang[from] {
	case model.Python:
		return r.python(from, tok)
	case model.JavaScript, model.TypeScript:
		return r.ecma(from, tok)
	case model.Java:
		return r.java(from, tok)
	case model.C, model.CPP:
		return r.cfamily(from, tok)
	case model.CSharp:
		return r.csharp(tok)
	case model.Go:
		return r.golang(tok)
	case model.Ruby:
		return r.ruby(from, tok)
	case model.PHP:
		return r.php(from, tok)
	}
	return resolution{}
}

func (r *resolver) python(from string, tok model.ImportToken) resolution {
	raw := tok.Raw
	var base string
	if tok.Relative {
		dots := len(raw) - len(strings.TrimLeft(raw, "."))
		base = path.Dir(from)
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}
		raw = raw[dots:]
	}
	modPath := strings.ReplaceAll(raw, ".", "/")

	lookup := func(rel string) resolution {
		if tok.Relative {
			p := path.Join(base, rel)
			for _, c := range []string{p + ".py", path.Join(p, "__init__.py")} {
				if r.ix.exists(c) {
					return found(c)
				}
			}
			return resolution{}
		}
		if rel == "" {
			return resolution{}
		}
		if res := pick(from, r.ix.suffix(rel+".py")); !res.empty() {
			return res
		}
		return pick(from, r.ix.suffix(path.Join(rel, "__init__.py")))
	}

	// "from pkg import mod" may name submodules.
	var subs []string
	for _, name := range tok.Names {
		if res := lookup(path.Join(modPath, name)); len(res.targets) == 1 {
			subs = append(subs, res.targets[0])
		}
	}
	if len(subs) == 0 {
		return lookup(modPath)
	}
	if len(subs) < len(tok.Names) {
		// The other names are defined in the package itself.
		if pkg := lookup(modPath); len(pkg.targets) == 1 && !slices.Contains(subs, pkg.targets[0]) {
			subs = append(subs, pkg.targets[0])
		}
	}
	return found(subs...)
}

func (r *resolver) ecma(from string, tok model.ImportToken) resolution {
	probe := func(p string) resolution {
		p = path.Clean(p)
		cands := []string{p}
		for _, ext := range ecmaExtensions {
			cands = append(cands, p+ext)
		}
		// TypeScript sources imported by their emitted .js name.
		if stem, ok := strings.CutSuffix(p, ".js"); ok {
			cands = append(cands, stem+".ts", stem+".tsx")
		}
		for _, ext := range ecmaExtensions {
			cands = append(cands, path.Join(p, "index"+ext))
		}
		for _, c := range cands {
			if r.ix.exists(c) {
				return found(c)
			}
		}
		return resolution{}
	}
	if tok.Relative {
		return probe(path.Join(path.Dir(from), tok.Raw))
	}
	return probe(tok.Raw)
}

func (r *resolver) java(from string, tok model.ImportToken) resolution {
	if pkg, ok := strings.CutSuffix(tok.Raw, ".*"); ok {
		return r.javaPackage(pkg)
	}
	rel := strings.ReplaceAll(tok.Raw, ".", "/")
	return firstOf(
		func() resolution { return pick(from, r.ix.suffix(rel+".java")) },
		// Static member or nested class: the file is one segment up.
		func() resolution {
			outer := path.Dir(rel)
			if outer == "." {
				return resolution{}
			}
			return pick(from, r.ix.suffix(outer+".java"))
		},
	)
}

func (r *resolver) javaPackage(pkg string) resolution {
	if files := r.ix.declared[model.Java][pkg]; len(files) > 0 {
		return found(files...)
	}
	var files []string
	for _, d := range r.ix.dirSuffix(strings.ReplaceAll(pkg, ".", "/")) {
		for _, f := range r.ix.byDir[d] {
			if r.ix.lang[f] == model.Java {
				files = append(files, f)
			}
		}
	}
	return found(files...)
}

func (r *resolver) cfamily(from string, tok model.ImportToken) resolution {
	if !tok.System {
		if p := path.Join(path.Dir(from), tok.Raw); r.ix.exists(p) {
			return found(p)
		}
	}
	return pick(from, r.ix.suffix(tok.Raw))
}

func (r *resolver) csharp(tok model.ImportToken) resolution {
	ns := r.ix.declared[model.CSharp]
	if files := ns[tok.Raw]; len(files) > 0 {
		return found(files...)
	}
	// using static A.B.Type
	if i := strings.LastIndex(tok.Raw, "."); i > 0 {
		if files := ns[tok.Raw[:i]]; len(files) > 0 {
			return found(files...)
		}
	}
	return resolution{}
}

func (r *resolver) golang(tok model.ImportToken) resolution {
	mod, ok := r.reg.LocalGoModule(tok.Raw)
	if !ok {
		return resolution{}
	}
	dir := path.Join(mod.Dir, strings.TrimPrefix(strings.TrimPrefix(tok.Raw, mod.Path), "/"))
	var files []string
	for _, f := range r.ix.byDir[dir] {
		if r.ix.lang[f] == model.Go && !strings.HasSuffix(f, "_test.go") {
			files = append(files, f)
		}
	}
	return found(files...)
}

func withExt(p, ext string) string {
	if path.Ext(p) == "" {
		return p + ext
	}
	return p
}

func (r *resolver) ruby(from string, tok model.ImportToken) resolution {
	rel := withExt(tok.Raw, ".rb")
	if tok.Relative {
		if p := path.Join(path.Dir(from), rel); r.ix.exists(p) {
			return found(p)
		}
		return resolution{}
	}
	return pick(from, r.ix.suffix(rel))
}

func (r *resolver) php(from string, tok model.ImportToken) resolution {
	if tok.Relative {
		return firstOf(
			func() resolution {
				if p := path.Join(path.Dir(from), tok.Raw); r.ix.exists(p) {
					return found(p)
				}
				return resolution{}
			},
			func() resolution { return pick(from, r.ix.suffix(tok.Raw)) },
		)
	}

	name := strings.Trim(tok.Raw, `\`)
	ns, class := "", name
	if i := strings.LastIndex(name, `\`); i >= 0 {
		ns, class = name[:i], name[i+1:]
	}
	rel := strings.ReplaceAll(name, `\`, "/") + ".php"
	return firstOf(
		func() resolution {
			var hits []string
			for _, f := range r.ix.declared[model.PHP][ns] {
				if path.Base(f) == class+".php" {
					hits = append(hits, f)
				}
			}
			return pick(from, hits)
		},
		func() resolution { return pick(from, r.ix.suffix(rel)) },
		// PSR-4 roots usually map the vendor prefix onto a directory like src/.
		func() resolution {
			_, rest, ok := strings.Cut(rel, "/")
			if !ok || !strings.Contains(rest, "/") {
				return resolution{}
			}
			return pick(from, r.ix.suffix(rest))
		},
	)
}
