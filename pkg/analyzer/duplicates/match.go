package duplicates

import (
	"cmp"
	"slices"
	"sync/atomic"
)

// DefaultMaxOccurrences is how many old occurrences of one hash a new
// fingerprint is compared against.
const DefaultMaxOccurrences = 64

// Matcher turns new-tree fingerprints into verified hits against the Index.
type Matcher struct {
	idx        *Index
	corpus     *Corpus
	limit      int
	suppressed atomic.Int64
}

// NewMatcher creates a matcher. Both idx and the old files of corpus must
// be complete before Match is called.
func NewMatcher(idx *Index, corpus *Corpus) *Matcher {
	return &Matcher{idx: idx, corpus: corpus, limit: DefaultMaxOccurrences}
}

// WithLimit sets the occurrence cap per hash. n <= 0 removes the cap.
func (m *Matcher) WithLimit(n int) *Matcher {
	m.limit = n
	return m
}

// Suppressed returns how many occurrences were left unexamined because
// their hash exceeded the cap.
func (m *Matcher) Suppressed() int {
	return int(m.suppressed.Load())
}

// Match looks up each fingerprint of newFile and keeps the old fingerprints
// whose token windows are symbol-for-symbol equal, so hash collisions never
// become hits. A hash occurring more often than the cap, as in highly
// repetitive code, is only compared against the occurrences whose offset is
// closest to the fingerprint's. Safe for concurrent use.
func (m *Matcher) Match(newFile FileRef, fps []Fingerprint) []Hit {
	var hits []Hit
	newSyms := m.corpus.Symbols(newFile)
	for _, fp := range fps {
		occs := m.idx.Lookup(fp.Hash)
		if m.limit > 0 && len(occs) > m.limit {
			m.suppressed.Add(int64(len(occs) - m.limit))
			occs = nearest(occs, fp.Start, m.limit)
		}
		for _, old := range occs {
			oldSyms := m.corpus.Symbols(old.File)
			if fp.End > len(newSyms) || old.End > len(oldSyms) {
				continue
			}
			if !slices.Equal(newSyms[fp.Start:fp.End], oldSyms[old.Start:old.End]) {
				continue
			}
			hits = append(hits, Hit{New: fp, Old: old})
		}
	}
	return hits
}

// nearest returns the limit occurrences whose start is closest to start,
// ties going to the lower file and then the lower start. occs must be
// sorted by (File, Start), which keeps the closest ones of each file next
// to its insertion point.
func nearest(occs []Fingerprint, start, limit int) []Fingerprint {
	var cand []Fingerprint
	for i := 0; i < len(occs); {
		file := occs[i].File
		n, _ := slices.BinarySearchFunc(occs[i:], file+1, func(fp Fingerprint, f FileRef) int {
			return cmp.Compare(fp.File, f)
		})
		group := occs[i : i+n]
		at, _ := slices.BinarySearchFunc(group, start, func(fp Fingerprint, s int) int {
			return cmp.Compare(fp.Start, s)
		})
		cand = append(cand, group[max(at-limit, 0):min(at+limit, len(group))]...)
		i += n
	}
	slices.SortFunc(cand, func(a, b Fingerprint) int {
		return cmp.Or(
			cmp.Compare(distance(a.Start, start), distance(b.Start, start)),
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Start, b.Start),
		)
	})
	return cand[:min(limit, len(cand))]
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
