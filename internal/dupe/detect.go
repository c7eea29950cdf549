package dupe

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codescope/internal/config"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/tokenize"
)

// DefaultMaxBucket bounds how many fragments may share one hash before the
// hash stops generating candidate pairs.
const DefaultMaxBucket = 512

// Options configures Detect.
type Options struct {
	Window    int     // shingle length in tokens
	Size      int     // retained hashes per sketch
	Threshold float64 // minimum similarity to report
	MinTokens int     // shorter fragments are ignored
	Workers   int
	MaxBucket int
}

// OptionsFrom derives detector options from the engine configuration.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		Window:    cfg.ShingleWindowSize,
		Size:      cfg.FingerprintSize,
		Threshold: cfg.SimilarityThreshold,
		MinTokens: cfg.MinFragmentTokens,
		Workers:   cfg.WorkerPoolSize,
		MaxBucket: DefaultMaxBucket,
	}
}

type candidate struct {
	frag   tokenize.Fragment
	sketch Sketch
}

type pair struct {
	a, b  int32
	score float64
}

// Detect clusters fragments whose pairwise similarity reaches the threshold.
// Every member of a returned cluster is within the threshold of every other.
func Detect(ctx context.Context, fragments []tokenize.Fragment, opts Options) ([]model.DuplicateCluster, error) {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range (0,1]", opts.Threshold)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxBucket <= 0 {
		opts.MaxBucket = DefaultMaxBucket
	}

	cands := sketchAll(fragments, opts)
	if len(cands) < 2 {
		return nil, nil
	}

	pairs := candidatePairs(cands, opts.MaxBucket)
	if err := verify(ctx, cands, pairs, opts.Workers); err != nil {
		return nil, err
	}

	uf := newUnionFind(len(cands))
	for _, p := range pairs {
		if p.score >= opts.Threshold {
			uf.union(int(p.a), int(p.b))
		}
	}

	var clusters []model.DuplicateCluster
	for _, comp := range uf.components() {
		if len(comp) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clusters = append(clusters, refine(cands, comp, opts.Threshold)...)
	}

	number(clusters)
	return clusters, nil
}

// number orders clusters by representative and assigns their IDs.
func number(clusters []model.DuplicateCluster) {
	slices.SortStableFunc(clusters, func(a, b model.DuplicateCluster) int {
		return compareFragments(a.Representative, b.Representative)
	})
	for i := range clusters {
		clusters[i].ID = fmt.Sprintf("dup-%d", i+1)
	}
}

func sketchAll(fragments []tokenize.Fragment, opts Options) []candidate {
	cands := make([]candidate, 0, len(fragments))
	for _, f := range fragments {
		if len(f.Tokens) < opts.MinTokens {
			continue
		}
		s := Fingerprint(f.Tokens, opts.Window, opts.Size)
		if len(s) == 0 {
			continue
		}
		cands = append(cands, candidate{frag: f, sketch: s})
	}
	return cands
}

// candidatePairs lists each pair of fragments sharing at least one retained
// hash, once, with a < b.
func candidatePairs(cands []candidate, maxBucket int) []pair {
	index := make(map[uint64][]int32)
	for i, c := range cands {
		for _, h := range c.sketch {
			index[h] = append(index[h], int32(i))
		}
	}

	seen := make(map[uint64]struct{})
	var pairs []pair
	for _, bucket := range index {
		if len(bucket) < 2 || len(bucket) > maxBucket {
			continue
		}
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				a, b := bucket[x], bucket[y]
				key := uint64(a)<<32 | uint64(b)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, pair{a: a, b: b})
			}
		}
	}
	return pairs
}

// verify scores pairs in place, in parallel chunks.
func verify(ctx context.Context, cands []candidate, pairs []pair, workers int) error {
	const chunk = 1024
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(pairs); start += chunk {
		part := pairs[start:min(start+chunk, len(pairs))]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := range part {
				part[i].score = Similarity(cands[part[i].a].sketch, cands[part[i].b].sketch)
			}
			return nil
		})
	}
	return g.Wait()
}

// refine splits a connected component into groups that are pairwise within
// the threshold. Members are placed longest first, each into the first group
// it fits.
func refine(cands []candidate, comp []int, threshold float64) []model.DuplicateCluster {
	slices.SortFunc(comp, func(x, y int) int {
		fx, fy := cands[x].frag.Fragment, cands[y].frag.Fragment
		if c := cmp.Compare(fy.Len(), fx.Len()); c != 0 {
			return c
		}
		return compareFragments(fx, fy)
	})

	type group struct {
		members  []int
		minScore float64
	}
	var groups []*group
	for _, m := range comp {
		placed := false
		for _, g := range groups {
			lowest := g.minScore
			fits := true
			for _, o := range g.members {
				s := Similarity(cands[m].sketch, cands[o].sketch)
				if s < threshold {
					fits = false
					break
				}
				lowest = min(lowest, s)
			}
			if fits {
				g.members = append(g.members, m)
				g.minScore = lowest
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &group{members: []int{m}, minScore: 1})
		}
	}

	var out []model.DuplicateCluster
	for _, g := range groups {
		if len(g.members) < 2 {
			continue
		}
		frags := make([]model.Fragment, len(g.members))
		for i, m := range g.members {
			frags[i] = cands[m].frag.Fragment
		}
		rep := frags[0]
		slices.SortFunc(frags, compareFragments)
		out = append(out, model.DuplicateCluster{
			Similarity:     g.minScore,
			Representative: rep,
			Fragments:      frags,
		})
	}
	return out
}

func compareFragments(a, b model.Fragment) int {
	if c := cmp.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	return cmp.Compare(a.StartByte, b.StartByte)
}
