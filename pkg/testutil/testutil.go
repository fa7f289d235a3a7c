// Package testutil builds in-memory source trees for tests.
package testutil

import (
	"path"
	"testing"

	"github.com/spf13/afero"
)

// MemFS creates an empty in-memory filesystem.
func MemFS() afero.Fs {
	return afero.NewMemMapFs()
}

// WriteFile writes content to name in fs, creating parent directories.
func WriteFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	if err := fs.MkdirAll(path.Dir(name), 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", path.Dir(name), err)
	}
	if err := afero.WriteFile(fs, name, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", name, err)
	}
}

// MemTrees returns a filesystem holding a new tree under /repo/new and an old
// tree under /repo/old. Map keys are paths relative to each tree.
func MemTrees(t *testing.T, newFiles, oldFiles map[string]string) afero.Fs {
	t.Helper()
	fs := MemFS()
	for name, content := range newFiles {
		WriteFile(t, fs, path.Join(NewRoot, name), content)
	}
	for name, content := range oldFiles {
		WriteFile(t, fs, path.Join(OldRoot, name), content)
	}
	return fs
}

// Tree roots used by MemTrees.
const (
	NewRoot = "/repo/new"
	OldRoot = "/repo/old"
)
