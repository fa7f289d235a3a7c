package duplicates

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/cda/pkg/stats"
)

// maxHotspots caps Summary.Hotspots.
const maxHotspots = 10

type fileKey struct {
	side Side
	path string
}

// coverage accumulates the token and line ranges of one file across pairs.
type coverage struct {
	tokens *roaring.Bitmap
	lines  *roaring.Bitmap
	pairs  int
}

func newCoverage() *coverage {
	return &coverage{tokens: roaring.New(), lines: roaring.New()}
}

// fileCoverage unions span ranges per file on both sides. Lines are the
// ones carrying covered tokens, so they never exceed FileStat.Lines.
func fileCoverage(corpus *Corpus, refs []FileRef, pairs []FilePair) map[fileKey]*coverage {
	byKey := make(map[fileKey]FileRef, len(refs))
	for _, ref := range refs {
		byKey[fileKey{corpus.Side(ref), corpus.Path(ref)}] = ref
	}
	covs := make(map[fileKey]*coverage)
	get := func(k fileKey) *coverage {
		c, ok := covs[k]
		if !ok {
			c = newCoverage()
			covs[k] = c
		}
		return c
	}

	for _, p := range pairs {
		newKey := fileKey{SideNew, p.NewFile}
		oldKey := fileKey{SideOld, p.OldFile}
		nc, oc := get(newKey), get(oldKey)
		nc.pairs++
		oc.pairs++
		newRef, hasNew := byKey[newKey]
		oldRef, hasOld := byKey[oldKey]
		for _, s := range p.Spans {
			nc.tokens.AddRange(uint64(s.NewStart), uint64(s.NewEnd))
			oc.tokens.AddRange(uint64(s.OldStart), uint64(s.OldEnd))
			if hasNew {
				corpus.AddLines(nc.lines, newRef, s.NewStart, s.NewEnd)
			}
			if hasOld {
				corpus.AddLines(oc.lines, oldRef, s.OldStart, s.OldEnd)
			}
		}
	}
	return covs
}

// buildFileStats describes every analyzed file, new files first, each side by path.
func buildFileStats(corpus *Corpus, refs []FileRef, pairs []FilePair) []FileStat {
	covs := fileCoverage(corpus, refs, pairs)
	files := make([]FileStat, 0, len(refs))
	for _, ref := range refs {
		fs := FileStat{
			Path:     corpus.Path(ref),
			Side:     corpus.Side(ref),
			Language: string(corpus.Language(ref)),
			Tokens:   corpus.Tokens(ref),
			Lines:    corpus.NonBlankLines(ref),
		}
		if c, ok := covs[fileKey{fs.Side, fs.Path}]; ok {
			fs.DuplicatedTokens = int(c.tokens.GetCardinality())
			fs.DuplicatedLines = int(c.lines.GetCardinality())
			fs.Pairs = c.pairs
			fs.Rate = ratio(fs.DuplicatedTokens, fs.Tokens)
		}
		files = append(files, fs)
	}

	slices.SortFunc(files, func(a, b FileStat) int {
		return cmp.Or(cmp.Compare(a.Side, b.Side), cmp.Compare(a.Path, b.Path))
	})
	return files
}

// buildSummary aggregates file statistics and span similarities.
func buildSummary(files []FileStat, pairs []FilePair, spans []DuplicateSpan) Summary {
	var s Summary
	var newRates, oldRates []float64
	for _, f := range files {
		switch f.Side {
		case SideNew:
			s.NewFiles++
			s.NewTokens += f.Tokens
			s.NewLines += f.Lines
			s.DuplicatedTokens += f.DuplicatedTokens
			s.DuplicatedLines += f.DuplicatedLines
			newRates = append(newRates, f.Rate)
		case SideOld:
			s.OldFiles++
			s.OldTokens += f.Tokens
			s.OldLines += f.Lines
			oldRates = append(oldRates, f.Rate)
		}
	}
	s.SelfRate = stats.Mean(newRates)
	s.DestinationRate = stats.Mean(oldRates)
	s.TotalPairs = len(pairs)
	s.TotalSpans = len(spans)

	similarities := make([]float64, len(spans))
	for i, sp := range spans {
		similarities[i] = sp.Similarity
	}
	dist := stats.Describe(similarities)
	s.AvgSimilarity = dist.Mean
	s.P50Similarity = dist.P50
	s.P95Similarity = dist.P95

	s.Hotspots = hotspots(files)
	return s
}

// hotspots ranks new files by duplicated lines.
func hotspots(files []FileStat) []Hotspot {
	var hs []Hotspot
	for _, f := range files {
		if f.Side != SideNew || f.DuplicatedTokens == 0 {
			continue
		}
		hs = append(hs, Hotspot{
			File:            f.Path,
			DuplicatedLines: f.DuplicatedLines,
			PairCount:       f.Pairs,
			Rate:            f.Rate,
		})
	}
	slices.SortFunc(hs, func(a, b Hotspot) int {
		return cmp.Or(
			cmp.Compare(b.DuplicatedLines, a.DuplicatedLines),
			cmp.Compare(b.Rate, a.Rate),
			cmp.Compare(a.File, b.File),
		)
	})
	if len(hs) > maxHotspots {
		hs = hs[:maxHotspots]
	}
	return hs
}
