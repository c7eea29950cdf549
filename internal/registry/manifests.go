package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/phobologic/codescope/internal/model"
)

// Manifest is a dependency manifest found in the analyzed tree.
type Manifest struct {
	Path string // slash-separated, relative to the collection root
	Data []byte
}

// IsManifest reports whether a file name is a dependency manifest the
// registry understands.
func IsManifest(name string) bool {
	switch name {
	case "package.json", "go.mod", "Gemfile", "composer.json":
		return true
	}
	return strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt")
}

// AddManifest records the dependencies a manifest declares.
func (r *Registry) AddManifest(m Manifest) error {
	name := path.Base(m.Path)
	switch {
	case name == "package.json":
		return r.addPackageJSON(m)
	case name == "composer.json":
		return r.addComposerJSON(m)
	case name == "go.mod":
		return r.addGoMod(m)
	case name == "Gemfile":
		r.addGemfile(m.Data)
		return nil
	case IsManifest(name):
		r.addRequirements(m.Data)
		return nil
	}
	return fmt.Errorf("%s: not a manifest", m.Path)
}

var reqNameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)

func (r *Registry) addRequirements(data []byte) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		m := reqNameRe.FindString(line)
		if m == "" {
			continue
		}
		// Distribution names use dashes; import names use underscores.
		r.Add(model.Python, m, strings.ReplaceAll(m, "-", "_"))
	}
}

func (r *Registry) addPackageJSON(m Manifest) error {
	var pkg struct {
		Dependencies         map[string]string `json:"dependencies"`
		DevDependencies      map[string]string `json:"devDependencies"`
		PeerDependencies     map[string]string `json:"peerDependencies"`
		OptionalDependencies map[string]string `json:"optionalDependencies"`
	}
	if err := json.Unmarshal(m.Data, &pkg); err != nil {
		return fmt.Errorf("%s: %w", m.Path, err)
	}
	for _, deps := range []map[string]string{pkg.Dependencies, pkg.DevDependencies, pkg.PeerDependencies, pkg.OptionalDependencies} {
		for name := range deps {
			r.Add(model.JavaScript, name)
		}
	}
	return nil
}

func (r *Registry) addComposerJSON(m Manifest) error {
	var pkg struct {
		Require    map[string]string `json:"require"`
		RequireDev map[string]string `json:"require-dev"`
	}
	if err := json.Unmarshal(m.Data, &pkg); err != nil {
		return fmt.Errorf("%s: %w", m.Path, err)
	}
	for _, deps := range []map[string]string{pkg.Require, pkg.RequireDev} {
		for name := range deps {
			if name == "php" || strings.HasPrefix(name, "ext-") {
				continue
			}
			// PSR-4 namespaces usually start with the vendor name.
			r.Add(model.PHP, firstSegment(name, "/"))
		}
	}
	return nil
}

func (r *Registry) addGoMod(m Manifest) error {
	f, err := modfile.ParseLax(m.Path, m.Data, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Path, err)
	}
	if f.Module != nil {
		r.addGoModule(GoModule{Dir: path.Dir(m.Path), Path: f.Module.Mod.Path})
	}
	for _, req := range f.Require {
		r.Add(model.Go, req.Mod.Path)
	}
	return nil
}

var gemRe = regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"]`)

func (r *Registry) addGemfile(data []byte) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if m := gemRe.FindStringSubmatch(sc.Text()); m != nil {
			// require names follow the gem name with dashes as path separators.
			r.Add(model.Ruby, m[1], strings.ReplaceAll(m[1], "-", "/"), strings.ReplaceAll(m[1], "-", "_"))
		}
	}
}
