package scanner

import "errors"

var (
	// ErrNoTree is returned when a tree directory is not given.
	ErrNoTree = errors.New("tree directory not specified")
	// ErrNotDir is returned when a tree path is not a directory.
	ErrNotDir = errors.New("not a directory")
	// ErrOutsideRepo is returned when the old tree is not inside the repository.
	ErrOutsideRepo = errors.New("outside the git repository")
)

// PathError indicates an invalid path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a scanning failure.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "failed to scan directory " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// GitError indicates the root is not inside a git repository.
type GitError struct {
	Err error
}

func (e *GitError) Error() string {
	return "not a git repository (or any parent): " + e.Err.Error()
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// RevisionError indicates a revision could not be read.
type RevisionError struct {
	Revision string
	Err      error
}

func (e *RevisionError) Error() string {
	return "cannot read revision " + e.Revision + ": " + e.Err.Error()
}

func (e *RevisionError) Unwrap() error {
	return e.Err
}
