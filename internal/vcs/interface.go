// Package vcs provides version control system abstractions.
package vcs

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository provides access to git repository operations.
type Repository interface {
	// Head returns a reference to the HEAD commit.
	Head() (Reference, error)
	// ResolveRevision resolves a branch, tag, or hash to a commit.
	ResolveRevision(rev string) (Commit, error)
	// CommitObject returns the commit with the given hash.
	CommitObject(hash plumbing.Hash) (Commit, error)
	// RepoPath returns the root path of the working tree.
	RepoPath() string
}

// Reference represents a git reference (branch, tag, HEAD).
type Reference interface {
	Hash() plumbing.Hash
}

// Commit represents a git commit.
type Commit interface {
	// Hash returns the commit hash.
	Hash() plumbing.Hash
	// Tree returns the tree object for this commit.
	Tree() (Tree, error)
	// Message returns the commit message.
	Message() string
}

// TreeEntry represents a file in a git tree.
type TreeEntry struct {
	Path string
	Size int64
}

// Tree represents a git tree object.
type Tree interface {
	// Entries returns all files in the tree (recursively).
	Entries() ([]TreeEntry, error)
	// File returns the contents of the file at path, relative to the tree.
	File(path string) ([]byte, error)
	// SubTree returns the tree rooted at dir.
	SubTree(dir string) (Tree, error)
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens an existing git repository.
	PlainOpen(path string) (Repository, error)
	// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
	PlainOpenWithDetect(path string) (Repository, error)
}
