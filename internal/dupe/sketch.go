// Package dupe finds near-duplicate code fragments across a codebase using
// bottom-k min-hash sketches over normalized token shingles.
package dupe

import (
	"encoding/binary"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/phobologic/codescope/internal/tokenize"
)

// Sketch is a bottom-k min-hash: the smallest distinct shingle hashes of a
// fragment, ascending.
type Sketch []uint64

// Fingerprint sketches a fragment's tokens. Identifiers are renamed by first
// occurrence so that consistently renamed copies produce the same shingles.
// Fewer than k tokens yield an empty sketch.
func Fingerprint(tokens []tokenize.Token, k, size int) Sketch {
	if k <= 0 || size <= 0 || len(tokens) < k {
		return nil
	}

	canon := make(map[string]string)
	th := make([]uint64, len(tokens))
	for i, tok := range tokens {
		norm := tok.Norm
		if norm == tokenize.Ident {
			c, ok := canon[tok.Text]
			if !ok {
				c = "ID" + strconv.Itoa(len(canon))
				canon[tok.Text] = c
			}
			norm = c
		}
		th[i] = xxhash.Sum64String(norm)
	}

	buf := make([]byte, 8*k)
	hashes := make([]uint64, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(th); i++ {
		for j := 0; j < k; j++ {
			binary.LittleEndian.PutUint64(buf[8*j:], th[i+j])
		}
		hashes = append(hashes, xxhash.Sum64(buf))
	}

	slices.Sort(hashes)
	hashes = slices.Compact(hashes)
	if len(hashes) > size {
		hashes = hashes[:size:size]
	}
	return hashes
}

// Similarity estimates the Jaccard similarity of the fragments behind a and b.
// It looks at the k smallest hashes of the union, k being the shorter
// sketch's length, and returns the fraction present in both. The result is
// symmetric, 1 for identical sketches and 0 for disjoint or empty ones.
func Similarity(a, b Sketch) float64 {
	k := min(len(a), len(b))
	if k == 0 {
		return 0
	}
	var i, j, seen, shared int
	for seen < k {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			shared++
			i++
			j++
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			i++
		default:
			j++
		}
		seen++
	}
	return float64(shared) / float64(k)
}
