// Package discover collects analyzable source files from a directory tree or a
// zip archive.
package discover

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/zeebo/blake3"

	"github.com/phobologic/codescope/internal/config"
	"github.com/phobologic/codescope/internal/lang"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/registry"
)

var skipDirs = map[string]struct{}{
	"__pycache__":      {},
	"__MACOSX":         {},
	"node_modules":     {},
	"bower_components": {},
	"vendor":           {},
	".git":             {},
	".hg":              {},
	".svn":             {},
	"venv":             {},
	".venv":            {},
	"env":              {},
	".env":             {},
	"build":            {},
	"dist":             {},
	"target":           {},
	"obj":              {},
	".tox":             {},
	".mypy_cache":      {},
	".ruff_cache":      {},
	".pytest_cache":    {},
	"egg-info":         {},
}

// Options controls what the collector accepts.
type Options struct {
	MaxFileSize      int64
	Languages        []model.Language // empty means all
	Exclude          []string         // doublestar patterns against slash paths
	RespectGitignore bool
}

// OptionsFrom derives collector options from the engine configuration.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		MaxFileSize:      cfg.MaxFileSize,
		Languages:        cfg.SupportedLanguages,
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.RespectGitignore,
	}
}

// Collection is the collector's output.
type Collection struct {
	Root      string
	Units     []model.SourceUnit
	Skipped   []model.SkippedFile
	Manifests []registry.Manifest
}

// CollectionError is fatal: the root could not be read or the archive is corrupt.
type CollectionError struct {
	Root string
	Err  error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s: %v", e.Root, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// IsCollectionError reports whether err is or wraps a CollectionError.
func IsCollectionError(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce)
}

// collector accumulates units from either source.
type collector struct {
	opts    Options
	langSet map[model.Language]struct{}
	ignored func(rel string) bool
	out     Collection
}

func newCollector(root string, opts Options) *collector {
	c := &collector{opts: opts, langSet: make(map[model.Language]struct{}, len(opts.Languages))}
	for _, l := range opts.Languages {
		c.langSet[l] = struct{}{}
	}
	c.out.Root = root
	c.ignored = func(string) bool { return false }
	return c
}

// skipName reports whether a path component hides everything below it.
func skipName(name string) bool {
	if _, skip := skipDirs[name]; skip {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// globbed reports whether rel matches an exclude pattern.
func (c *collector) globbed(rel string) bool {
	for _, p := range c.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (c *collector) excluded(rel string) bool {
	return c.globbed(rel) || c.ignored(rel)
}

// add considers one regular file. read is only called once the file has
// passed the cheap filters.
func (c *collector) add(rel string, size int64, read func() ([]byte, error)) {
	name := path.Base(rel)
	// Hidden files and AppleDouble "._" resource forks.
	if strings.HasPrefix(name, ".") {
		return
	}
	if c.excluded(rel) {
		return
	}

	if registry.IsManifest(name) {
		if size <= c.opts.MaxFileSize {
			if data, err := read(); err == nil {
				c.out.Manifests = append(c.out.Manifests, registry.Manifest{Path: rel, Data: data})
			}
		}
		return
	}

	ext := path.Ext(name)
	var language model.Language
	if ext != "" {
		if language = lang.ForExtension(ext); language == "" {
			return
		}
	}

	if size > c.opts.MaxFileSize {
		if language != "" && c.enabled(language) {
			c.skip(rel, model.SkipTooLarge, fmt.Sprintf(">%d bytes", c.opts.MaxFileSize))
		}
		return
	}

	data, err := read()
	if err != nil {
		c.skip(rel, model.SkipUnreadable, err.Error())
		return
	}

	if language == "" {
		l, ok := lang.Classify(name, data)
		if !ok {
			return
		}
		language = l
	}
	if !c.enabled(language) {
		c.skip(rel, model.SkipExcluded, string(language))
		return
	}

	sum := blake3.Sum256(data)
	c.out.Units = append(c.out.Units, model.SourceUnit{
		Path:     rel,
		Language: language,
		Text:     data,
		Size:     int64(len(data)),
		Digest:   hex.EncodeToString(sum[:]),
	})
}

func (c *collector) enabled(l model.Language) bool {
	if len(c.langSet) == 0 {
		return true
	}
	_, ok := c.langSet[l]
	return ok
}

func (c *collector) skip(rel string, reason model.SkipReason, detail string) {
	c.out.Skipped = append(c.out.Skipped, model.SkippedFile{Path: rel, Reason: reason, Detail: detail})
}

func (c *collector) finish() *Collection {
	sort.Slice(c.out.Units, func(i, j int) bool { return c.out.Units[i].Path < c.out.Units[j].Path })
	sort.Slice(c.out.Skipped, func(i, j int) bool { return c.out.Skipped[i].Path < c.out.Skipped[j].Path })
	sort.Slice(c.out.Manifests, func(i, j int) bool { return c.out.Manifests[i].Path < c.out.Manifests[j].Path })
	return &c.out
}

// Files collects source units under root.
func Files(ctx context.Context, root string, opts Options) (*Collection, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &CollectionError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &CollectionError{Root: root, Err: errors.New("not a directory")}
	}

	c := newCollector(root, opts)
	if opts.RespectGitignore {
		if gitFiles := gitLsFiles(ctx, root); gitFiles != nil {
			c.ignored = func(rel string) bool {
				_, tracked := gitFiles[rel]
				return !tracked
			}
		} else if gi := loadGitignore(root); gi != nil {
			c.ignored = gi.MatchesPath
		}
	}

	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == root {
				return err
			}
			if rel, relErr := filepath.Rel(root, p); relErr == nil {
				c.skip(filepath.ToSlash(rel), model.SkipUnreadable, err.Error())
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if p == root {
				return nil
			}
			if skipName(d.Name()) {
				return filepath.SkipDir
			}
			if rel, err := filepath.Rel(root, p); err == nil && c.globbed(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks and other non-regular files
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			c.skip(filepath.ToSlash(rel), model.SkipUnreadable, err.Error())
			return nil
		}
		c.add(filepath.ToSlash(rel), fi.Size(), func() ([]byte, error) { return os.ReadFile(p) })
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &CollectionError{Root: root, Err: err}
	}
	return c.finish(), nil
}

func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
