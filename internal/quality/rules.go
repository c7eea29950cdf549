// Package quality scans source text against pattern rules for security,
// performance, complexity and style issues.
package quality

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/codescope/internal/model"
)

//go:embed rules.yaml
var rulesYAML []byte

// Scope selects what a rule's pattern runs against.
type Scope string

const (
	ScopeLine Scope = "line"
	ScopeFile Scope = "file"
)

// Rule is one pattern check.
type Rule struct {
	ID        string           `yaml:"id"`
	Languages []model.Language `yaml:"languages"` // empty means every language
	Category  model.Category   `yaml:"category"`
	Severity  model.Severity   `yaml:"severity"`
	Pattern   string           `yaml:"pattern"`
	// Negative suppresses a match when it also matches the same line, or the
	// matched text for file rules.
	Negative        string `yaml:"negative"`
	Scope           Scope  `yaml:"scope"`
	IncludeComments bool   `yaml:"include_comments"`
	// Message is a regexp.Expand template over the pattern's groups.
	Message string `yaml:"message"`

	once     sync.Once
	re, neg  *regexp.Regexp
	compiled error
}

func (r *Rule) compile() error {
	r.once.Do(func() {
		var err error
		if r.re, err = regexp.Compile(r.Pattern); err != nil {
			r.compiled = fmt.Errorf("rule %s: pattern: %w", r.ID, err)
			return
		}
		if r.Negative != "" {
			if r.neg, err = regexp.Compile(r.Negative); err != nil {
				r.compiled = fmt.Errorf("rule %s: negative: %w", r.ID, err)
			}
		}
	})
	return r.compiled
}

func (r *Rule) appliesTo(l model.Language) bool {
	return len(r.Languages) == 0 || slices.Contains(r.Languages, l)
}

func (r *Rule) validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("missing id"))
	}
	if !slices.Contains(model.AllCategories, r.Category) {
		errs = append(errs, fmt.Errorf("unknown category %q", r.Category))
	}
	switch r.Severity {
	case model.Low, model.Medium, model.High, model.Critical:
	default:
		errs = append(errs, fmt.Errorf("unknown severity %q", r.Severity))
	}
	switch r.Scope {
	case "":
		r.Scope = ScopeLine
	case ScopeLine, ScopeFile:
	default:
		errs = append(errs, fmt.Errorf("unknown scope %q", r.Scope))
	}
	for _, l := range r.Languages {
		if !slices.Contains(model.AllLanguages, l) {
			errs = append(errs, fmt.Errorf("unknown language %q", l))
		}
	}
	if r.Pattern == "" {
		errs = append(errs, errors.New("missing pattern"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("rule %q: %w", r.ID, errors.Join(errs...))
	}
	return nil
}

// Registry indexes rules by language. Add rules before scanning; a registry
// is safe for concurrent scans once built.
type Registry struct {
	rules []*Rule
	ids   map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Register validates and adds a rule. IDs must be unique.
func (reg *Registry) Register(r *Rule) error {
	if err := r.validate(); err != nil {
		return err
	}
	if _, dup := reg.ids[r.ID]; dup {
		return fmt.Errorf("rule %q already registered", r.ID)
	}
	reg.ids[r.ID] = struct{}{}
	reg.rules = append(reg.rules, r)
	return nil
}

// LoadYAML registers every rule in a YAML list.
func (reg *Registry) LoadYAML(data []byte) error {
	var rules []*Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("parsing rules: %w", err)
	}
	for _, r := range rules {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns the rules for a language in registration order.
func (reg *Registry) Rules(l model.Language) []*Rule {
	var out []*Rule
	for _, r := range reg.rules {
		if r.appliesTo(l) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of registered rules.
func (reg *Registry) Len() int { return len(reg.rules) }

var (
	defaultOnce  sync.Once
	defaultRules []*Rule
	defaultErr   error
)

// DefaultRegistry returns a new registry holding the embedded default rules.
// The defaults are parsed once; callers may register more rules on the copy.
func DefaultRegistry() (*Registry, error) {
	defaultOnce.Do(func() {
		base := NewRegistry()
		if defaultErr = base.LoadYAML(rulesYAML); defaultErr == nil {
			defaultRules = base.rules
		}
	})
	if defaultErr != nil {
		return nil, defaultErr
	}
	reg := NewRegistry()
	for _, r := range defaultRules {
		reg.ids[r.ID] = struct{}{}
		reg.rules = append(reg.rules, r)
	}
	return reg, nil
}
