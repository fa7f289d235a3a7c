// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/panbanda/cda/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
// The zero value is ready to use and safe for concurrent Add calls.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	return e.Len() > 0
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Sorted returns a copy of the collected errors ordered by path.
func (e *ProcessingErrors) Sorted() []ProcessingError {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	out := make([]ProcessingError, len(e.Errors))
	copy(out, e.Errors)
	e.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count, defaulting to 2x NumCPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return n
}

// ProgressFunc is called after each item is processed.
type ProgressFunc func()

// Task processes a single item with a parser owned by the calling worker.
type Task[I, T any] func(ctx context.Context, psr *parser.Parser, item I) (T, error)

// Options tunes a Map run.
type Options struct {
	// Workers caps concurrency; <= 0 means 2x NumCPU.
	Workers int
	// OnProgress is called once per finished item, failed or not.
	OnProgress ProgressFunc
	// Errors receives per-item failures. May be nil to discard them.
	Errors *ProcessingErrors
}

// parserPool hands out at most one idle parser per worker slot.
type parserPool struct {
	idle chan *parser.Parser
}

func newParserPool(size int) *parserPool {
	return &parserPool{idle: make(chan *parser.Parser, size)}
}

func (pp *parserPool) get() *parser.Parser {
	select {
	case p := <-pp.idle:
		return p
	default:
		return parser.New()
	}
}

func (pp *parserPool) put(p *parser.Parser) {
	select {
	case pp.idle <- p:
	default:
		p.Close()
	}
}

func (pp *parserPool) close() {
	close(pp.idle)
	for p := range pp.idle {
		p.Close()
	}
}

// Map processes items in parallel and returns index-aligned results:
// results[i] belongs to items[i], and a failed item leaves the zero value
// in its slot with the failure recorded in opts.Errors under name(item).
//
// Parsers are reused across items handled by the same worker slot.
// When ctx is cancelled, remaining items are not started and Map returns
// nil results with ctx.Err(); cancellation is not recorded as a per-item error.
func Map[I, T any](ctx context.Context, items []I, name func(I) string, fn Task[I, T], opts Options) ([]T, error) {
	if len(items) == 0 {
		return nil, ctx.Err()
	}

	workers := Workers(opts.Workers)
	results := make([]T, len(items))
	parsers := newParserPool(workers)
	defer parsers.close()

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			psr := parsers.get()
			result, err := fn(ctx, psr, item)
			parsers.put(psr)

			if opts.OnProgress != nil {
				opts.OnProgress()
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				opts.Errors.Add(name(item), err)
				return nil // don't stop the pool on individual failures
			}

			// Each goroutine owns its slot; no lock needed.
			results[i] = result
			return nil
		})
	}
	_ = p.Wait() // cancellation is reported through ctx below

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// MapFiles is Map over plain paths.
func MapFiles[T any](ctx context.Context, files []string, fn Task[string, T], opts Options) ([]T, error) {
	return Map(ctx, files, func(path string) string { return path }, fn, opts)
}
