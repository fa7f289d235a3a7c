package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/cda/internal/fileproc"
	scannerSvc "github.com/panbanda/cda/internal/service/scanner"
	"github.com/panbanda/cda/internal/testutil"
	"github.com/panbanda/cda/pkg/analyzer/duplicates"
	"github.com/panbanda/cda/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"app/total.go": testutil.Billing,
		"app/queue.go": testutil.Queue,
		"old/total.go": strings.ReplaceAll(testutil.Billing, "billing", "legacy"),
	})

	var ticks atomic.Int32
	a, scan, err := New(WithConfig(testConfig(t))).Run(context.Background(),
		scannerSvc.Trees{Root: root, Source: "app", Destination: "old"},
		Options{OnProgress: func() { ticks.Add(1) }})
	require.NoError(t, err)

	assert.Len(t, scan.NewFiles, 2)
	assert.Len(t, scan.OldFiles, 1)
	assert.Equal(t, int32(3), ticks.Load())

	require.Len(t, a.Pairs, 1)
	assert.Equal(t, "total.go", a.Pairs[0].NewFile)
	assert.Equal(t, "total.go", a.Pairs[0].OldFile)
	assert.Equal(t, 2, a.Summary.NewFiles)
}

func TestRunEmptyTree(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"app/a.go": testutil.Billing})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "old"), 0755))

	_, scan, err := New(WithConfig(testConfig(t))).Run(context.Background(),
		scannerSvc.Trees{Root: root, Source: "app", Destination: "old"}, Options{})
	assert.ErrorIs(t, err, duplicates.ErrEmptyTree)
	assert.NotNil(t, scan)
}

func TestRunScanError(t *testing.T) {
	_, scan, err := New(WithConfig(testConfig(t))).Run(context.Background(),
		scannerSvc.Trees{Root: t.TempDir(), Source: "missing", Destination: "gone"}, Options{})
	require.Error(t, err)
	assert.Nil(t, scan)
}

func TestAnalyzeUsesCache(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"app/a.go": testutil.Billing, "old/a.go": testutil.Billing})

	cfg := testConfig(t)
	cfg.Cache.Enabled = true
	svc := New(WithConfig(cfg))

	trees := scannerSvc.Trees{Root: root, Source: "app", Destination: "old"}
	_, _, err := svc.Run(context.Background(), trees, Options{})
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.Cache.Dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	noCache := filepath.Join(t.TempDir(), "never")
	cfg.Cache.Dir = noCache
	_, _, err = svc.Run(context.Background(), trees, Options{NoCache: true})
	require.NoError(t, err)
	_, err = os.Stat(noCache)
	assert.True(t, os.IsNotExist(err))
}

func TestAnalyzeDiagnostics(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"app/a.go":   testutil.Billing,
		"app/bad.go": "package bad\x00\x01",
		"old/a.go":   testutil.Billing,
	})

	var diags fileproc.ProcessingErrors
	a, _, err := New(WithConfig(testConfig(t))).Run(context.Background(),
		scannerSvc.Trees{Root: root, Source: "app", Destination: "old"},
		Options{Diagnostics: &diags})
	require.NoError(t, err)
	assert.Equal(t, 1, diags.Len())
	assert.Len(t, a.Diagnostics, 1)
	assert.True(t, a.HasDuplicates())
}

func TestAnalyzeInvalidConfig(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"app/a.go": testutil.Billing, "old/a.go": testutil.Billing})

	cfg := testConfig(t)
	cfg.Duplicates.Guarantee = 1
	_, _, err := New(WithConfig(cfg)).Run(context.Background(),
		scannerSvc.Trees{Root: root, Source: "app", Destination: "old"}, Options{})
	assert.ErrorIs(t, err, duplicates.ErrConfigurationInvalid)
}
