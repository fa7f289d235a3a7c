package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panbanda/cda/pkg/parser"
)

func TestMapFiles(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "file1.go", "package main\nfunc main() {}"),
		createTestFile(t, tmpDir, "file2.go", "package main\nfunc test() {}"),
		createTestFile(t, tmpDir, "file3.go", "package main\nfunc validate() {}"),
	}

	ctx := context.Background()
	results, err := MapFiles(ctx, files, func(_ context.Context, p *parser.Parser, path string) (string, error) {
		return filepath.Base(path), nil
	}, Options{})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []string{"file1.go", "file2.go", "file3.go"}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("results = %v, want %v", results, want)
	}
}

func TestMap_EmptyList(t *testing.T) {
	results, err := MapFiles(context.Background(), nil, func(_ context.Context, p *parser.Parser, path string) (string, error) {
		return path, nil
	}, Options{})

	if results != nil {
		t.Errorf("Expected nil for empty list, got %v", results)
	}
	if err != nil {
		t.Errorf("Expected nil error for empty list, got %v", err)
	}
}

// Indexed assignment keeps results aligned with inputs regardless of completion order.
func TestMap_PreservesOrder(t *testing.T) {
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}

	results, err := Map(context.Background(), items, func(i int) string { return fmt.Sprint(i) },
		func(_ context.Context, _ *parser.Parser, i int) (int, error) {
			if i%7 == 0 {
				runtime.Gosched()
			}
			return i * 2, nil
		}, Options{Workers: 8})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i, r := range results {
		if r != i*2 {
			t.Fatalf("results[%d] = %d, want %d", i, r, i*2)
		}
	}
}

func TestMap_WithErrors(t *testing.T) {
	items := []string{"good1", "bad", "good2"}
	errs := &ProcessingErrors{}
	var processed atomic.Int32

	results, err := Map(context.Background(), items, func(s string) string { return s + ".go" },
		func(_ context.Context, _ *parser.Parser, s string) (string, error) {
			processed.Add(1)
			if s == "bad" {
				return "", fmt.Errorf("simulated error")
			}
			return s, nil
		}, Options{Errors: errs})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if processed.Load() != 3 {
		t.Errorf("Expected all 3 items to be processed, got %d", processed.Load())
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 result slots, got %d", len(results))
	}
	if results[0] != "good1" || results[1] != "" || results[2] != "good2" {
		t.Errorf("results = %q, want [good1 \"\" good2]", results)
	}
	if errs.Len() != 1 {
		t.Fatalf("Expected 1 error, got %d", errs.Len())
	}
	if errs.Errors[0].Path != "bad.go" {
		t.Errorf("error path = %q, want bad.go", errs.Errors[0].Path)
	}
}

func TestMap_NilErrorsDiscards(t *testing.T) {
	results, err := Map(context.Background(), []int{1, 2}, func(i int) string { return fmt.Sprint(i) },
		func(_ context.Context, _ *parser.Parser, i int) (int, error) {
			if i == 1 {
				return 0, errors.New("boom")
			}
			return i, nil
		}, Options{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if results[0] != 0 || results[1] != 2 {
		t.Errorf("results = %v", results)
	}
}

func TestMap_ParserAvailable(t *testing.T) {
	src := []byte("package main\nfunc main() {}")

	results, err := Map(context.Background(), []int{0}, func(int) string { return "main.go" },
		func(ctx context.Context, p *parser.Parser, _ int) (bool, error) {
			if p == nil {
				return false, errors.New("nil parser")
			}
			result, err := p.Parse(ctx, src, parser.LangGo, "main.go")
			if err != nil {
				return false, err
			}
			defer result.Close()
			return result.Tree != nil, nil
		}, Options{})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !results[0] {
		t.Error("Parser should have successfully parsed the source")
	}
}

func TestMap_ParserReuse(t *testing.T) {
	items := make([]int, 100)
	parserAddrs := make(map[uintptr]int)
	var mu sync.Mutex

	_, err := Map(context.Background(), items, func(int) string { return "" },
		func(_ context.Context, p *parser.Parser, _ int) (int, error) {
			mu.Lock()
			parserAddrs[reflect.ValueOf(p).Pointer()]++
			mu.Unlock()
			return 1, nil
		}, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(parserAddrs) >= len(items) {
		t.Errorf("Expected parser reuse: got %d unique parsers for %d items", len(parserAddrs), len(items))
	}
}

func TestMap_WithProgress(t *testing.T) {
	items := []string{"a", "b", "bad", "d", "e"}
	var progressCount atomic.Int32

	_, err := Map(context.Background(), items, func(s string) string { return s },
		func(_ context.Context, _ *parser.Parser, s string) (int, error) {
			if s == "bad" {
				return 0, errors.New("fail")
			}
			return 1, nil
		}, Options{OnProgress: func() { progressCount.Add(1) }})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Progress fires for failures too.
	if int(progressCount.Load()) != len(items) {
		t.Errorf("Expected progress callback %d times, got %d", len(items), progressCount.Load())
	}
}

func TestMap_Cancellation(t *testing.T) {
	items := make([]int, 100)
	ctx, cancel := context.WithCancel(context.Background())

	var processed atomic.Int32
	errs := &ProcessingErrors{}
	results, err := Map(ctx, items, func(int) string { return "" },
		func(_ context.Context, _ *parser.Parser, _ int) (int, error) {
			if processed.Add(1) == 10 {
				cancel()
			}
			return 1, nil
		}, Options{Workers: 2, Errors: errs})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Map() error = %v, want context.Canceled", err)
	}
	if results != nil {
		t.Errorf("Expected no partial results, got %d", len(results))
	}
	if errs.HasErrors() {
		t.Errorf("Cancellation should not be recorded per item, got %v", errs)
	}
}

func TestMap_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	_, err := Map(ctx, []int{1, 2, 3}, func(int) string { return "" },
		func(_ context.Context, _ *parser.Parser, _ int) (int, error) {
			called.Store(true)
			return 0, nil
		}, Options{})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Map() error = %v, want context.Canceled", err)
	}
	if called.Load() {
		t.Error("No task should run on a cancelled context")
	}
}

func TestWorkers(t *testing.T) {
	if got := Workers(3); got != 3 {
		t.Errorf("Workers(3) = %d, want 3", got)
	}
	if got := Workers(0); got != runtime.NumCPU()*DefaultWorkerMultiplier {
		t.Errorf("Workers(0) = %d, want %d", got, runtime.NumCPU()*DefaultWorkerMultiplier)
	}
}

func TestProcessingError(t *testing.T) {
	sentinel := errors.New("parse failed")
	err := ProcessingError{Path: "/path/to/file.go", Err: sentinel}
	expected := "/path/to/file.go: parse failed"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, sentinel) {
		t.Error("ProcessingError should unwrap to its cause")
	}
}

func TestProcessingErrors(t *testing.T) {
	errs := &ProcessingErrors{}

	// Empty errors
	if errs.HasErrors() {
		t.Error("Empty ProcessingErrors should not have errors")
	}
	if errs.Error() != "no errors" {
		t.Errorf("Empty error message = %q, want 'no errors'", errs.Error())
	}

	// Single error
	errs.Add("/file1.go", fmt.Errorf("error1"))
	if !errs.HasErrors() {
		t.Error("ProcessingErrors with one error should have errors")
	}
	if errs.Error() != "/file1.go: error1" {
		t.Errorf("Single error message = %q", errs.Error())
	}

	// Multiple errors
	errs.Add("/file2.go", fmt.Errorf("error2"))
	if errs.Len() != 2 {
		t.Errorf("Expected 2 errors, got %d", errs.Len())
	}
	errMsg := errs.Error()
	if errMsg != "2 files failed to process (first: /file1.go: error1)" {
		t.Errorf("Multiple error message = %q", errMsg)
	}
}

func TestProcessingErrors_Sorted(t *testing.T) {
	errs := &ProcessingErrors{}
	errs.Add("c.go", errors.New("c"))
	errs.Add("a.go", errors.New("a"))
	errs.Add("b.go", errors.New("b"))

	sorted := errs.Sorted()
	got := []string{sorted[0].Path, sorted[1].Path, sorted[2].Path}
	if !reflect.DeepEqual(got, []string{"a.go", "b.go", "c.go"}) {
		t.Errorf("Sorted() paths = %v", got)
	}
	// Original order untouched
	if errs.Errors[0].Path != "c.go" {
		t.Error("Sorted() must not reorder the collection")
	}
}

func TestProcessingErrors_NilSafe(t *testing.T) {
	var errs *ProcessingErrors
	errs.Add("x.go", errors.New("ignored"))
	if errs.HasErrors() || errs.Len() != 0 || errs.Sorted() != nil {
		t.Error("nil ProcessingErrors should behave as empty")
	}
}

func TestProcessingErrors_ThreadSafe(t *testing.T) {
	errs := &ProcessingErrors{}
	var wg sync.WaitGroup

	// Add errors concurrently
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs.Add(fmt.Sprintf("/file%d.go", n), fmt.Errorf("error %d", n))
		}(i)
	}
	wg.Wait()

	if errs.Len() != 100 {
		t.Errorf("Expected 100 errors, got %d", errs.Len())
	}
}

func BenchmarkMap(b *testing.B) {
	items := make([]int, 1000)
	for i := 0; i < b.N; i++ {
		_, _ = Map(context.Background(), items, func(int) string { return "" },
			func(_ context.Context, _ *parser.Parser, n int) (int, error) {
				return n + 1, nil
			}, Options{})
	}
}

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file %s: %v", name, err)
	}
	return path
}
