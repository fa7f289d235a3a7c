// Package source abstracts where file contents come from: the working tree,
// an in-memory filesystem, or a git revision.
package source

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/panbanda/cda/internal/vcs"
	"github.com/spf13/afero"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
// Relative paths are resolved against Root when it is set.
type FilesystemSource struct {
	Root string
}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// NewFilesystemAt creates a source that reads paths relative to root.
func NewFilesystemAt(root string) *FilesystemSource {
	return &FilesystemSource{Root: root}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}
	return os.ReadFile(path)
}

// AferoSource reads files from an afero filesystem, relative to Root.
type AferoSource struct {
	FS   afero.Fs
	Root string
}

// NewAfero creates a source backed by fs.
func NewAfero(fs afero.Fs, root string) *AferoSource {
	return &AferoSource{FS: fs, Root: root}
}

// Read implements ContentSource.
func (a *AferoSource) Read(path string) ([]byte, error) {
	if a.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(a.Root, path)
	}
	return afero.ReadFile(a.FS, path)
}

// TreeSource reads files from a git tree.
// It is safe for concurrent use by multiple goroutines.
type TreeSource struct {
	tree vcs.Tree
	mu   sync.Mutex
}

// NewTree creates a source that reads from a git tree.
func NewTree(tree vcs.Tree) *TreeSource {
	return &TreeSource{tree: tree}
}

// Read implements ContentSource.
// It is safe for concurrent use.
func (t *TreeSource) Read(path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.File(path)
}
