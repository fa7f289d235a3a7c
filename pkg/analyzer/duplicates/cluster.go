package duplicates

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// ClusterConfig holds the Clusterer settings.
type ClusterConfig struct {
	// Window is the fingerprint window; clipped runs shorter than it are dropped.
	Window int
	// MergeGap is the largest token gap bridged between runs on either side.
	MergeGap int
	// OffsetTolerance is the largest diagonal drift allowed when merging.
	OffsetTolerance int
	// MinSpanTokens is the fewest matched tokens a reported span may have.
	MinSpanTokens int
}

// Clusterer turns hits into non-overlapping duplicate spans per file pair.
type Clusterer struct {
	cfg    ClusterConfig
	corpus *Corpus
}

// NewClusterer creates a clusterer reading token streams from corpus.
func NewClusterer(cfg ClusterConfig, corpus *Corpus) *Clusterer {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	if cfg.MinSpanTokens < 1 {
		cfg.MinSpanTokens = cfg.Window
	}
	return &Clusterer{cfg: cfg, corpus: corpus}
}

type pairKey struct {
	newFile FileRef
	oldFile FileRef
}

// run is an exact diagonal match: new[newStart+i] == old[oldStart+i].
type run struct {
	newStart, oldStart, length int
}

func (r run) newEnd() int { return r.newStart + r.length }
func (r run) oldEnd() int { return r.oldStart + r.length }
func (r run) offset() int { return r.oldStart - r.newStart }

// span is a merged chain of runs.
type span struct {
	newStart, newEnd int
	oldStart, oldEnd int
	matched          int
	lastOffset       int
}

// Cluster groups hits by file pair, extends them to maximal runs, resolves
// overlaps, merges nearby runs and scores the result. Output is sorted by
// (new path, old path) and does not depend on hit order.
func (c *Clusterer) Cluster(hits []Hit) []FilePair {
	groups := make(map[pairKey][]Hit)
	for _, h := range hits {
		k := pairKey{newFile: h.New.File, oldFile: h.Old.File}
		groups[k] = append(groups[k], h)
	}

	pairs := make([]FilePair, 0, len(groups))
	for k, group := range groups {
		if pair, ok := c.clusterPair(k, group); ok {
			pairs = append(pairs, pair)
		}
	}

	slices.SortFunc(pairs, func(a, b FilePair) int {
		return cmp.Or(cmp.Compare(a.NewFile, b.NewFile), cmp.Compare(a.OldFile, b.OldFile))
	})
	return pairs
}

func (c *Clusterer) clusterPair(k pairKey, hits []Hit) (FilePair, bool) {
	runs := c.extend(k, hits)
	accepted, oldCov := c.resolve(runs)
	spans := c.merge(accepted, oldCov)

	pair := FilePair{
		NewFile: c.corpus.Path(k.newFile),
		OldFile: c.corpus.Path(k.oldFile),
	}
	newTokens := roaring.New()
	oldTokens := roaring.New()
	newLines := roaring.New()
	oldLines := roaring.New()
	for _, s := range spans {
		if s.matched < c.cfg.MinSpanTokens {
			continue
		}
		ds := c.toDuplicateSpan(k, s)
		pair.Spans = append(pair.Spans, ds)

		newTokens.AddRange(uint64(s.newStart), uint64(s.newEnd))
		oldTokens.AddRange(uint64(s.oldStart), uint64(s.oldEnd))
		c.corpus.AddLines(newLines, k.newFile, s.newStart, s.newEnd)
		c.corpus.AddLines(oldLines, k.oldFile, s.oldStart, s.oldEnd)
	}
	if len(pair.Spans) == 0 {
		return FilePair{}, false
	}

	pair.DuplicatedTokens = int(newTokens.GetCardinality())
	pair.DuplicatedLines = int(newLines.GetCardinality())
	pair.OldDuplicatedLines = int(oldLines.GetCardinality())
	pair.NewCoverage = ratio(int(newTokens.GetCardinality()), c.corpus.Tokens(k.newFile))
	pair.OldCoverage = ratio(int(oldTokens.GetCardinality()), c.corpus.Tokens(k.oldFile))
	return pair, true
}

// extend grows each hit along its diagonal to the longest exact run.
// Hits falling inside a run already found on the same diagonal are skipped.
func (c *Clusterer) extend(k pairKey, hits []Hit) []run {
	slices.SortFunc(hits, func(a, b Hit) int {
		return cmp.Or(cmp.Compare(a.New.Start, b.New.Start), cmp.Compare(a.Old.Start, b.Old.Start))
	})

	newSyms := c.corpus.Symbols(k.newFile)
	oldSyms := c.corpus.Symbols(k.oldFile)

	lastOnDiagonal := make(map[int]run)
	seen := make(map[run]struct{})
	var runs []run
	for _, h := range hits {
		diag := h.Old.Start - h.New.Start
		if prev, ok := lastOnDiagonal[diag]; ok && h.New.Start >= prev.newStart && h.New.End <= prev.newEnd() {
			continue
		}

		ns, os := h.New.Start, h.Old.Start
		for ns > 0 && os > 0 && newSyms[ns-1] == oldSyms[os-1] {
			ns--
			os--
		}
		ne, oe := h.New.End, h.Old.End
		for ne < len(newSyms) && oe < len(oldSyms) && newSyms[ne] == oldSyms[oe] {
			ne++
			oe++
		}

		r := run{newStart: ns, oldStart: os, length: ne - ns}
		lastOnDiagonal[diag] = r
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		runs = append(runs, r)
	}
	return runs
}

// resolve accepts runs longest first, clipping each against the coverage
// already accepted on both sides. It returns the surviving pieces and the
// accepted old-side coverage.
func (c *Clusterer) resolve(runs []run) ([]run, *roaring.Bitmap) {
	slices.SortFunc(runs, func(a, b run) int {
		return cmp.Or(
			cmp.Compare(b.length, a.length),
			cmp.Compare(a.newStart, b.newStart),
			cmp.Compare(a.oldStart, b.oldStart),
		)
	})

	newCov := roaring.New()
	oldCov := roaring.New()
	var accepted []run
	for _, r := range runs {
		for _, piece := range clip(r, newCov, oldCov) {
			if piece.length < c.cfg.Window {
				continue
			}
			newCov.AddRange(uint64(piece.newStart), uint64(piece.newEnd()))
			oldCov.AddRange(uint64(piece.oldStart), uint64(piece.oldEnd()))
			accepted = append(accepted, piece)
		}
	}
	return accepted, oldCov
}

// clip splits r into the maximal pieces covered on neither side.
func clip(r run, newCov, oldCov *roaring.Bitmap) []run {
	var pieces []run
	start := -1
	for i := 0; i <= r.length; i++ {
		free := i < r.length &&
			!newCov.Contains(uint32(r.newStart+i)) &&
			!oldCov.Contains(uint32(r.oldStart+i))
		switch {
		case free && start < 0:
			start = i
		case !free && start >= 0:
			pieces = append(pieces, run{
				newStart: r.newStart + start,
				oldStart: r.oldStart + start,
				length:   i - start,
			})
			start = -1
		}
	}
	return pieces
}

// merge chains runs in new-start order into spans. A run joins the open span
// when both gaps are within MergeGap, the old side moves forward, the diagonal
// drifts by at most OffsetTolerance, and no accepted run sits in the old gap.
func (c *Clusterer) merge(runs []run, oldCov *roaring.Bitmap) []span {
	slices.SortFunc(runs, func(a, b run) int {
		return cmp.Or(cmp.Compare(a.newStart, b.newStart), cmp.Compare(a.oldStart, b.oldStart))
	})

	var spans []span
	for _, r := range runs {
		if n := len(spans); n > 0 && c.joins(&spans[n-1], r, oldCov) {
			s := &spans[n-1]
			s.newEnd = r.newEnd()
			s.oldEnd = r.oldEnd()
			s.matched += r.length
			s.lastOffset = r.offset()
			continue
		}
		spans = append(spans, span{
			newStart:   r.newStart,
			newEnd:     r.newEnd(),
			oldStart:   r.oldStart,
			oldEnd:     r.oldEnd(),
			matched:    r.length,
			lastOffset: r.offset(),
		})
	}
	return spans
}

func (c *Clusterer) joins(s *span, r run, oldCov *roaring.Bitmap) bool {
	if r.newStart < s.newEnd || r.newStart-s.newEnd > c.cfg.MergeGap {
		return false
	}
	if r.oldStart < s.oldEnd || r.oldStart-s.oldEnd > c.cfg.MergeGap {
		return false
	}
	if abs(r.offset()-s.lastOffset) > c.cfg.OffsetTolerance {
		return false
	}
	return occupied(oldCov, s.oldEnd, r.oldStart) == 0
}

// occupied counts the members of bm in [from, to).
func occupied(bm *roaring.Bitmap, from, to int) uint64 {
	if to <= from {
		return 0
	}
	n := bm.Rank(uint32(to - 1))
	if from > 0 {
		n -= bm.Rank(uint32(from - 1))
	}
	return n
}

func (c *Clusterer) toDuplicateSpan(k pairKey, s span) DuplicateSpan {
	newFirst, newLast := c.corpus.LineRange(k.newFile, s.newStart, s.newEnd)
	oldFirst, oldLast := c.corpus.LineRange(k.oldFile, s.oldStart, s.oldEnd)
	return DuplicateSpan{
		NewFile:      c.corpus.Path(k.newFile),
		NewStart:     s.newStart,
		NewEnd:       s.newEnd,
		NewStartLine: newFirst,
		NewEndLine:   newLast,
		OldFile:      c.corpus.Path(k.oldFile),
		OldStart:     s.oldStart,
		OldEnd:       s.oldEnd,
		OldStartLine: oldFirst,
		OldEndLine:   oldLast,
		Tokens:       s.matched,
		Similarity:   similarity(s),
	}
}

// similarity is matched tokens over the longer side, clamped to [0, 1].
func similarity(s span) float64 {
	longest := max(s.newEnd-s.newStart, s.oldEnd-s.oldStart)
	return min(ratio(s.matched, longest), 1)
}

// SortSpans orders spans by new path and start, then old path and start.
func SortSpans(spans []DuplicateSpan) {
	slices.SortFunc(spans, func(a, b DuplicateSpan) int {
		return cmp.Or(
			cmp.Compare(a.NewFile, b.NewFile),
			cmp.Compare(a.NewStart, b.NewStart),
			cmp.Compare(a.OldFile, b.OldFile),
			cmp.Compare(a.OldStart, b.OldStart),
		)
	})
}

func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
