// Package duplicates finds regions of a new source tree that were copied
// from an old source tree.
//
// Files are tokenized and normalized, token windows are hashed and
// winnowed into fingerprints, old-tree fingerprints are indexed, and new-tree
// fingerprints are matched against the index. Verified matches are grown
// into maximal runs, de-overlapped, merged and reported per file pair.
package duplicates

import (
	"context"
	"fmt"

	"github.com/panbanda/cda/internal/cache"
	"github.com/panbanda/cda/internal/fileproc"
	"github.com/panbanda/cda/pkg/config"
	"github.com/panbanda/cda/pkg/parser"
)

// Analyzer runs the detection pipeline.
type Analyzer struct {
	config     Config
	configErr  error
	cache      *cache.Cache
	onProgress fileproc.ProgressFunc
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithConfig sets all detector settings from a config struct.
func WithConfig(cfg config.DuplicateConfig) Option {
	return func(a *Analyzer) {
		c, err := ConfigFrom(cfg)
		if err != nil {
			a.configErr = err
			return
		}
		a.config = c
	}
}

// WithNormalization sets the normalization level.
func WithNormalization(n Normalization) Option {
	return func(a *Analyzer) {
		a.config.Normalization = n
	}
}

// WithWindow sets the fingerprint window in tokens.
func WithWindow(w int) Option {
	return func(a *Analyzer) {
		a.config.Window = w
	}
}

// WithGuarantee sets the winnowing guarantee window in window hashes.
func WithGuarantee(t int) Option {
	return func(a *Analyzer) {
		a.config.Guarantee = t
	}
}

// WithMergeGap sets the largest token gap bridged when merging runs.
func WithMergeGap(gap int) Option {
	return func(a *Analyzer) {
		a.config.MergeGap = gap
	}
}

// WithOffsetTolerance sets the largest diagonal drift allowed when merging runs.
func WithOffsetTolerance(tol int) Option {
	return func(a *Analyzer) {
		a.config.OffsetTolerance = tol
	}
}

// WithMinSpanTokens sets the minimum matched tokens of a reported span (0 = window).
func WithMinSpanTokens(n int) Option {
	return func(a *Analyzer) {
		a.config.MinSpanTokens = n
	}
}

// WithWorkers sets the worker count (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.config.Workers = n
	}
}

// WithLanguage tokenizes every file as lang instead of detecting it per file.
func WithLanguage(lang parser.Language) Option {
	return func(a *Analyzer) {
		a.config.Language = lang
	}
}

// WithMaxFileSize skips files larger than n bytes (0 = no limit).
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) {
		a.config.MaxFileSize = n
	}
}

// WithMaxOccurrences caps how many old occurrences of one hash each new
// fingerprint is compared against (0 = DefaultMaxOccurrences).
func WithMaxOccurrences(n int) Option {
	return func(a *Analyzer) {
		a.config.MaxOccurrences = n
	}
}

// WithCache reuses token streams across runs.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithProgress sets a callback invoked once per processed file.
func WithProgress(fn fileproc.ProgressFunc) Option {
	return func(a *Analyzer) {
		a.onProgress = fn
	}
}

// New creates a new duplicate analyzer with default config.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// job is one file bound to its corpus slot.
type job struct {
	ref  FileRef
	file SourceFile
}

func jobName(j job) string {
	return fmt.Sprintf("%s (%s)", j.file.Path, j.file.Side)
}

// fileResult is what a worker produces for one file.
type fileResult struct {
	fps     []Fingerprint
	hits    []Hit
	ok      bool
	skipped bool
}

// Analyze finds code in newFiles duplicated from oldFiles.
//
// Files that cannot be read or tokenized are recorded in diags and skipped.
// diags may be nil. On cancellation Analyze returns ctx.Err() and no result.
func (a *Analyzer) Analyze(ctx context.Context, newFiles, oldFiles []SourceFile, diags *fileproc.ProcessingErrors) (*Analysis, error) {
	if a.configErr != nil {
		return nil, a.configErr
	}
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	if len(newFiles) == 0 {
		return nil, fmt.Errorf("%w: no files in the new tree", ErrEmptyTree)
	}
	if len(oldFiles) == 0 {
		return nil, fmt.Errorf("%w: no files in the old tree", ErrEmptyTree)
	}
	if diags == nil {
		diags = &fileproc.ProcessingErrors{}
	}

	corpus := NewCorpus()
	oldJobs := a.jobs(corpus, oldFiles, SideOld)
	newJobs := a.jobs(corpus, newFiles, SideNew)

	tok := NewTokenizer(a.config.Normalization)
	fpr := NewFingerprinter(a.config.Window, a.config.Guarantee)
	opts := fileproc.Options{
		Workers:    a.config.Workers,
		OnProgress: a.onProgress,
		Errors:     diags,
	}

	oldResults, err := fileproc.Map(ctx, oldJobs, jobName,
		func(ctx context.Context, psr *parser.Parser, j job) (fileResult, error) {
			return a.processFile(ctx, psr, tok, fpr, corpus, j)
		}, opts)
	if err != nil {
		return nil, err
	}

	oldFPs := make([][]Fingerprint, len(oldResults))
	for i, r := range oldResults {
		oldFPs[i] = r.fps
	}
	idx := BuildIndex(oldFPs...)
	matcher := NewMatcher(idx, corpus).WithLimit(a.config.EffectiveMaxOccurrences())

	newResults, err := fileproc.Map(ctx, newJobs, jobName,
		func(ctx context.Context, psr *parser.Parser, j job) (fileResult, error) {
			r, err := a.processFile(ctx, psr, tok, fpr, corpus, j)
			if err != nil || !r.ok {
				return r, err
			}
			r.hits = matcher.Match(j.ref, r.fps)
			r.fps = nil
			return r, nil
		}, opts)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, r := range newResults {
		hits = append(hits, r.hits...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs := NewClusterer(a.config.ClusterConfig(), corpus).Cluster(hits)
	spans := make([]DuplicateSpan, 0, len(pairs))
	for _, p := range pairs {
		spans = append(spans, p.Spans...)
	}
	SortSpans(spans)

	var refs []FileRef
	skipped, oversized := 0, 0
	tally := func(jobs []job, results []fileResult) {
		for i, r := range results {
			switch {
			case r.ok:
				refs = append(refs, jobs[i].ref)
			case r.skipped:
				oversized++
				skipped++
			default:
				skipped++
			}
		}
	}
	tally(oldJobs, oldResults)
	tally(newJobs, newResults)

	files := buildFileStats(corpus, refs, pairs)
	summary := buildSummary(files, pairs, spans)
	summary.SkippedFiles = skipped
	summary.OversizedFiles = oversized
	summary.IndexedHashes = idx.Len()
	summary.SuppressedOccurrences = matcher.Suppressed()

	return &Analysis{
		Pairs:       pairs,
		Spans:       spans,
		Files:       files,
		Summary:     summary,
		Diagnostics: diags.Sorted(),
		Config:      a.config,
	}, nil
}

// jobs reserves corpus slots for files and forces their side.
func (a *Analyzer) jobs(corpus *Corpus, files []SourceFile, side Side) []job {
	first := corpus.reserve(len(files))
	jobs := make([]job, len(files))
	for i, f := range files {
		f.Side = side
		if a.config.Language != "" {
			f.Language = a.config.Language
		}
		jobs[i] = job{ref: first + FileRef(i), file: f}
	}
	return jobs
}

// processFile reads, tokenizes and fingerprints one file into its slot.
func (a *Analyzer) processFile(ctx context.Context, psr *parser.Parser, tok *Tokenizer, fpr *Fingerprinter, corpus *Corpus, j job) (fileResult, error) {
	content, err := j.file.Content()
	if err != nil {
		return fileResult{}, err
	}
	if a.config.MaxFileSize > 0 && int64(len(content)) > a.config.MaxFileSize {
		return fileResult{skipped: true}, nil
	}

	ts, err := a.tokenStream(ctx, psr, tok, content, j.file.Language)
	if err != nil {
		return fileResult{}, err
	}

	corpus.set(j.ref, corpus.compact(j.file.Path, j.file.Side, j.file.Language,
		ts.Texts, ts.Lines, ts.EndLines, ts.NonBlankLines))
	return fileResult{
		fps: fpr.Fingerprint(j.ref, hashTexts(ts.Texts)),
		ok:  true,
	}, nil
}

// tokenStream tokenizes content, going through the cache when enabled.
func (a *Analyzer) tokenStream(ctx context.Context, psr *parser.Parser, tok *Tokenizer, content []byte, lang parser.Language) (*cache.TokenStream, error) {
	var key string
	if a.cache.Enabled() {
		key = cache.Key(content, tok.Level().String(), string(lang))
		if ts, ok := a.cache.GetTokens(key); ok {
			return ts, nil
		}
	}

	tokens, err := tok.TokenizeContext(ctx, psr, content, lang)
	if err != nil {
		return nil, err
	}

	texts, lines, endLines := splitTokens(tokens)
	ts := &cache.TokenStream{
		Texts:         texts,
		Kinds:         make([]uint8, len(tokens)),
		Lines:         lines,
		EndLines:      endLines,
		NonBlankLines: countNonBlankLines(content),
	}
	for i, t := range tokens {
		ts.Kinds[i] = uint8(t.Kind)
	}

	if key != "" {
		// A failed write only costs a re-tokenization next run.
		_ = a.cache.SetTokens(key, ts)
	}
	return ts, nil
}
