package dupe

import (
	"bytes"
	"context"
	"slices"

	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/tokenize"
)

// Files clusters duplicates across a whole codebase. Units with identical
// content form one exact-copy cluster of whole-file fragments with similarity
// 1, whatever their size. Fragment clusters are found with Detect; one whose
// members all lie in copies of a single file is left to the exact-copy
// cluster.
func Files(ctx context.Context, units []model.SourceUnit, streams map[string]*tokenize.Stream, opts Options) ([]model.DuplicateCluster, error) {
	var frags []tokenize.Fragment
	for _, u := range units {
		if s := streams[u.Path]; s != nil {
			frags = append(frags, s.Fragments...)
		}
	}
	near, err := Detect(ctx, frags, opts)
	if err != nil {
		return nil, err
	}

	clusters, copyOf := exactCopies(units, streams)
	if len(clusters) == 0 {
		return near, nil
	}
	for _, c := range near {
		if !withinCopies(c, copyOf) {
			clusters = append(clusters, c)
		}
	}
	number(clusters)
	return clusters, nil
}

// exactCopies groups units by content digest. copyOf maps each path in a
// reported group to its digest. Units without tokens are never copies.
func exactCopies(units []model.SourceUnit, streams map[string]*tokenize.Stream) ([]model.DuplicateCluster, map[string]string) {
	byDigest := make(map[string][]model.Fragment)
	var digests []string
	for _, u := range units {
		s := streams[u.Path]
		if u.Digest == "" || s == nil || s.Tokens == 0 {
			continue
		}
		if _, ok := byDigest[u.Digest]; !ok {
			digests = append(digests, u.Digest)
		}
		byDigest[u.Digest] = append(byDigest[u.Digest], wholeUnit(u, s.Tokens))
	}

	copyOf := make(map[string]string)
	var out []model.DuplicateCluster
	for _, d := range digests {
		frags := byDigest[d]
		if len(frags) < 2 {
			continue
		}
		slices.SortFunc(frags, compareFragments)
		for _, f := range frags {
			copyOf[f.Path] = d
		}
		out = append(out, model.DuplicateCluster{
			Similarity:     1,
			Representative: frags[0],
			Fragments:      frags,
		})
	}
	return out, copyOf
}

func wholeUnit(u model.SourceUnit, tokens int) model.Fragment {
	lines := bytes.Count(u.Text, []byte("\n"))
	if len(u.Text) > 0 && u.Text[len(u.Text)-1] != '\n' {
		lines++
	}
	return model.Fragment{
		Path:      u.Path,
		StartByte: 0,
		EndByte:   len(u.Text),
		StartLine: 1,
		EndLine:   lines,
		Tokens:    tokens,
	}
}

// withinCopies reports whether c spans two or more files that are all copies
// of one another.
func withinCopies(c model.DuplicateCluster, copyOf map[string]string) bool {
	d, ok := copyOf[c.Fragments[0].Path]
	if !ok {
		return false
	}
	paths := make(map[string]struct{})
	for _, f := range c.Fragments {
		if copyOf[f.Path] != d {
			return false
		}
		paths[f.Path] = struct{}{}
	}
	return len(paths) > 1
}
