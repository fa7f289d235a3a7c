package duplicates

import (
	"fmt"

	"github.com/panbanda/cda/internal/fileproc"
)

// Side tells which tree a file belongs to.
type Side uint8

const (
	SideNew Side = iota // the tree being checked for copied code
	SideOld             // the tree copied code may come from
)

// String returns the string representation.
func (s Side) String() string {
	switch s {
	case SideNew:
		return "new"
	case SideOld:
		return "old"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// MarshalText encodes the side as "new" or "old".
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TokenKind classifies a token for normalization.
type TokenKind uint8

const (
	KindKeyword TokenKind = iota
	KindIdentifier
	KindString
	KindNumber
	KindOperator
)

// String returns the string representation.
func (k TokenKind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindIdentifier:
		return "identifier"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindOperator:
		return "operator"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Token is one lexical unit of a file after normalization.
// StartByte/EndByte map back to exactly one contiguous region of the
// original text; lines are 1-based.
type Token struct {
	Kind      TokenKind
	Text      string
	Line      int
	Column    int
	EndLine   int
	StartByte int
	EndByte   int
}

// FileRef identifies a file inside a Corpus.
type FileRef int32

// Fingerprint is a selected window hash. End - Start always equals the window size.
type Fingerprint struct {
	Hash  uint64
	Start int
	End   int
	File  FileRef
}

// Hit is a verified pair of equal token windows, one in each tree.
type Hit struct {
	New Fingerprint
	Old Fingerprint
}

// DuplicateSpan is a region of a new file that duplicates a region of an old file.
// Token ranges are half-open; line ranges are inclusive and 1-based.
type DuplicateSpan struct {
	NewFile      string  `json:"new_file" toon:"new_file"`
	NewStart     int     `json:"new_start" toon:"new_start"`
	NewEnd       int     `json:"new_end" toon:"new_end"`
	NewStartLine int     `json:"new_start_line" toon:"new_start_line"`
	NewEndLine   int     `json:"new_end_line" toon:"new_end_line"`
	OldFile      string  `json:"old_file" toon:"old_file"`
	OldStart     int     `json:"old_start" toon:"old_start"`
	OldEnd       int     `json:"old_end" toon:"old_end"`
	OldStartLine int     `json:"old_start_line" toon:"old_start_line"`
	OldEndLine   int     `json:"old_end_line" toon:"old_end_line"`
	Tokens       int     `json:"tokens" toon:"tokens"`
	Similarity   float64 `json:"similarity" toon:"similarity"`
}

// NewLines returns the number of new-file lines the span touches.
func (s DuplicateSpan) NewLines() int {
	return s.NewEndLine - s.NewStartLine + 1
}

// OldLines returns the number of old-file lines the span touches.
func (s DuplicateSpan) OldLines() int {
	return s.OldEndLine - s.OldStartLine + 1
}

// FilePair groups the spans shared by one new file and one old file.
type FilePair struct {
	NewFile string          `json:"new_file" toon:"new_file"`
	OldFile string          `json:"old_file" toon:"old_file"`
	Spans   []DuplicateSpan `json:"spans" toon:"spans"`
	// Fraction of the new file's tokens covered by spans.
	NewCoverage float64 `json:"new_coverage" toon:"new_coverage"`
	// Fraction of the old file's tokens covered by spans.
	OldCoverage      float64 `json:"old_coverage" toon:"old_coverage"`
	DuplicatedTokens int     `json:"duplicated_tokens" toon:"duplicated_tokens"`
	// Distinct new-file lines touched by spans.
	DuplicatedLines int `json:"duplicated_lines" toon:"duplicated_lines"`
	// Distinct old-file lines touched by spans.
	OldDuplicatedLines int `json:"old_duplicated_lines" toon:"old_duplicated_lines"`
}

// FileStat describes one analyzed file.
type FileStat struct {
	Path     string `json:"path" toon:"path"`
	Side     Side   `json:"side" toon:"side"`
	Language string `json:"language" toon:"language"`
	Tokens   int    `json:"tokens" toon:"tokens"`
	// Lines counts non-blank lines.
	Lines            int     `json:"lines" toon:"lines"`
	DuplicatedTokens int     `json:"duplicated_tokens" toon:"duplicated_tokens"`
	DuplicatedLines  int     `json:"duplicated_lines" toon:"duplicated_lines"`
	Rate             float64 `json:"rate" toon:"rate"`
	Pairs            int     `json:"pairs" toon:"pairs"`
}

// Hotspot is a new file with a high share of copied code.
type Hotspot struct {
	File            string  `json:"file" toon:"file"`
	DuplicatedLines int     `json:"duplicated_lines" toon:"duplicated_lines"`
	PairCount       int     `json:"pair_count" toon:"pair_count"`
	Rate            float64 `json:"rate" toon:"rate"`
}

// Summary provides aggregate statistics.
type Summary struct {
	NewFiles int `json:"new_files" toon:"new_files"`
	OldFiles int `json:"old_files" toon:"old_files"`
	// Unreadable and oversized files.
	SkippedFiles int `json:"skipped_files" toon:"skipped_files"`
	// Files skipped for exceeding the size limit.
	OversizedFiles   int `json:"oversized_files" toon:"oversized_files"`
	NewTokens        int `json:"new_tokens" toon:"new_tokens"`
	OldTokens        int `json:"old_tokens" toon:"old_tokens"`
	NewLines         int `json:"new_lines" toon:"new_lines"`
	OldLines         int `json:"old_lines" toon:"old_lines"`
	DuplicatedTokens int `json:"duplicated_tokens" toon:"duplicated_tokens"`
	DuplicatedLines  int `json:"duplicated_lines" toon:"duplicated_lines"`
	TotalSpans       int `json:"total_spans" toon:"total_spans"`
	TotalPairs       int `json:"total_pairs" toon:"total_pairs"`
	IndexedHashes    int `json:"indexed_hashes" toon:"indexed_hashes"`
	// Old occurrences of over-frequent hashes left out of matching.
	SuppressedOccurrences int `json:"suppressed_occurrences" toon:"suppressed_occurrences"`
	// Mean share of each new file covered by copied code.
	SelfRate float64 `json:"self_rate" toon:"self_rate"`
	// Mean share of each old file that was copied into the new tree.
	DestinationRate float64   `json:"destination_rate" toon:"destination_rate"`
	AvgSimilarity   float64   `json:"avg_similarity" toon:"avg_similarity"`
	P50Similarity   float64   `json:"p50_similarity" toon:"p50_similarity"`
	P95Similarity   float64   `json:"p95_similarity" toon:"p95_similarity"`
	Hotspots        []Hotspot `json:"hotspots,omitempty" toon:"hotspots,omitempty"`
}

// Analysis is the full result of a run.
type Analysis struct {
	Pairs       []FilePair                 `json:"pairs" toon:"pairs"`
	Spans       []DuplicateSpan            `json:"spans" toon:"spans"`
	Files       []FileStat                 `json:"files" toon:"files"`
	Summary     Summary                    `json:"summary" toon:"summary"`
	Diagnostics []fileproc.ProcessingError `json:"-" toon:"-"`
	Config      Config                     `json:"config" toon:"config"`
}

// HasDuplicates reports whether any span was found.
func (a *Analysis) HasDuplicates() bool {
	return len(a.Spans) > 0
}
