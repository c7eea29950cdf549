package discover

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Archive collects source units from an in-memory zip archive. name labels
// the collection root in errors and metadata.
func Archive(ctx context.Context, data []byte, name string, opts Options) (*Collection, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	// Insecure names still yield a usable reader; cleanEntry drops them.
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, &CollectionError{Root: name, Err: fmt.Errorf("reading archive: %w", err)}
	}

	c := newCollector(name, opts)
	if opts.RespectGitignore {
		if gi, dir := archiveGitignore(zr); gi != nil {
			c.ignored = func(rel string) bool {
				if dir == "." {
					return gi.MatchesPath(rel)
				}
				sub, ok := strings.CutPrefix(rel, dir+"/")
				return ok && gi.MatchesPath(sub)
			}
		}
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, ok := cleanEntry(f)
		if !ok {
			continue
		}
		c.add(rel, int64(f.UncompressedSize64), func() ([]byte, error) {
			return readEntry(f, opts.MaxFileSize)
		})
	}
	return c.finish(), nil
}

// cleanEntry returns the slash path of a regular-file entry, rejecting
// directories, symlinks, entries escaping the root, and anything under a
// skipped or hidden directory.
func cleanEntry(f *zip.File) (string, bool) {
	if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
		return "", false
	}
	name := strings.ReplaceAll(f.Name, `\`, "/")
	if path.IsAbs(name) {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	parts := strings.Split(cleaned, "/")
	for _, dir := range parts[:len(parts)-1] {
		if skipName(dir) {
			return "", false
		}
	}
	return cleaned, true
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	// The header size can lie; never read past the ceiling.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.New("entry larger than declared size")
	}
	return data, nil
}

// archiveGitignore compiles the shallowest .gitignore in the archive and
// returns the directory it applies to.
func archiveGitignore(zr *zip.Reader) (*ignore.GitIgnore, string) {
	var best *zip.File
	for _, f := range zr.File {
		if path.Base(f.Name) != ".gitignore" {
			continue
		}
		if best == nil || strings.Count(f.Name, "/") < strings.Count(best.Name, "/") {
			best = f
		}
	}
	if best == nil || best.UncompressedSize64 > 1<<20 {
		return nil, ""
	}
	data, err := readEntry(best, 1<<20)
	if err != nil {
		return nil, ""
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), path.Dir(path.Clean(best.Name))
}
