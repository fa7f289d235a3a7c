package duplicates

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/cda/pkg/parser"
)

// Symbols interns normalized token texts into small integer ids so token
// windows can be compared without string comparisons.
// It is safe for concurrent use.
type Symbols struct {
	ids  sync.Map // string -> uint32
	next atomic.Uint32
}

// Intern returns the id for text, assigning a new one on first sight.
// Ids are unique per text but not necessarily dense.
func (s *Symbols) Intern(text string) uint32 {
	if v, ok := s.ids.Load(text); ok {
		return v.(uint32)
	}
	id := s.next.Add(1) - 1
	actual, _ := s.ids.LoadOrStore(text, id)
	return actual.(uint32)
}

// fileData is the compact form of a tokenized file. Token text and
// offsets are dropped; only symbol ids and line numbers remain.
type fileData struct {
	path     string
	side     Side
	lang     parser.Language
	syms     []uint32
	lines    []int32
	endLines []int32
	nonBlank int
}

// Corpus holds the compact token streams of every analyzed file.
//
// Slots are reserved up front by a single goroutine; afterwards distinct
// workers may fill distinct slots concurrently, and readers may read any
// slot whose writer has finished.
type Corpus struct {
	symbols Symbols
	files   []fileData
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{}
}

// reserve appends n empty slots and returns the first one.
func (c *Corpus) reserve(n int) FileRef {
	first := FileRef(len(c.files))
	c.files = append(c.files, make([]fileData, n)...)
	return first
}

// set fills a reserved slot.
func (c *Corpus) set(ref FileRef, data fileData) {
	c.files[ref] = data
}

// compact interns normalized texts into a fileData.
func (c *Corpus) compact(path string, side Side, lang parser.Language, texts []string, lines, endLines []int32, nonBlank int) fileData {
	syms := make([]uint32, len(texts))
	for i, text := range texts {
		syms[i] = c.symbols.Intern(text)
	}
	return fileData{
		path:     path,
		side:     side,
		lang:     lang,
		syms:     syms,
		lines:    lines,
		endLines: endLines,
		nonBlank: nonBlank,
	}
}

// AddTokens stores an already tokenized file and returns its reference.
// Not safe for concurrent use; the pipeline uses reserved slots instead.
func (c *Corpus) AddTokens(path string, side Side, tokens []Token) FileRef {
	texts, lines, endLines := splitTokens(tokens)
	ref := c.reserve(1)
	c.set(ref, c.compact(path, side, parser.LangUnknown, texts, lines, endLines, tokenLines(lines, endLines)))
	return ref
}

// splitTokens separates token texts from their line numbers.
func splitTokens(tokens []Token) (texts []string, lines, endLines []int32) {
	texts = make([]string, len(tokens))
	lines = make([]int32, len(tokens))
	endLines = make([]int32, len(tokens))
	for i, tok := range tokens {
		texts[i] = tok.Text
		lines[i] = int32(tok.Line)
		end := tok.EndLine
		if end < tok.Line {
			end = tok.Line
		}
		endLines[i] = int32(end)
	}
	return texts, lines, endLines
}

// tokenLines counts the distinct lines covered by a token stream in
// source order. Without the original text it stands in for non-blank lines.
func tokenLines(lines, endLines []int32) int {
	n := 0
	var last int32
	for i := range lines {
		from := lines[i]
		if from <= last {
			from = last + 1
		}
		if endLines[i] >= from {
			n += int(endLines[i]-from) + 1
			last = endLines[i]
		}
	}
	return n
}

// NumFiles returns the number of slots.
func (c *Corpus) NumFiles() int {
	return len(c.files)
}

// Path returns the file path of ref.
func (c *Corpus) Path(ref FileRef) string {
	return c.files[ref].path
}

// Side returns which tree ref belongs to.
func (c *Corpus) Side(ref FileRef) Side {
	return c.files[ref].side
}

// Language returns the language ref was tokenized as.
func (c *Corpus) Language(ref FileRef) parser.Language {
	return c.files[ref].lang
}

// Tokens returns the number of tokens in ref.
func (c *Corpus) Tokens(ref FileRef) int {
	return len(c.files[ref].syms)
}

// NonBlankLines returns the number of non-blank lines in ref.
func (c *Corpus) NonBlankLines(ref FileRef) int {
	return c.files[ref].nonBlank
}

// Symbols returns the interned token stream of ref. Callers must not modify it.
func (c *Corpus) Symbols(ref FileRef) []uint32 {
	return c.files[ref].syms
}

// LineRange maps the half-open token range [start, end) of ref to its
// inclusive 1-based line range.
func (c *Corpus) LineRange(ref FileRef, start, end int) (first, last int) {
	f := &c.files[ref]
	if start >= end || end > len(f.lines) {
		return 0, 0
	}
	return int(f.lines[start]), int(f.endLines[end-1])
}

// AddLines adds to lines every line spanned by a token in the half-open
// range [start, end) of ref. Blank and comment-only lines between tokens
// are left out.
func (c *Corpus) AddLines(lines *roaring.Bitmap, ref FileRef, start, end int) {
	f := &c.files[ref]
	end = min(end, len(f.lines))
	for i := max(start, 0); i < end; i++ {
		lines.AddRange(uint64(f.lines[i]), uint64(f.endLines[i])+1)
	}
}
