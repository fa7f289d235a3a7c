// Package scanner resolves the new and old trees of a comparison into
// source files, either from directories or from a git revision.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/panbanda/cda/internal/scanner"
	"github.com/panbanda/cda/internal/vcs"
	"github.com/panbanda/cda/pkg/analyzer/duplicates"
	"github.com/panbanda/cda/pkg/config"
	"github.com/panbanda/cda/pkg/parser"
	"github.com/panbanda/cda/pkg/source"
)

// Trees names the two sides of a comparison.
// Source and Destination are resolved against Root unless absolute.
type Trees struct {
	Root        string
	Source      string // the new tree
	Destination string // the old tree
	// Against reads the old tree from this git revision of the repository
	// containing Root. Destination then names a directory inside that
	// revision and defaults to Source.
	Against string
}

// ScanResult contains the files of both trees.
// File paths are slash-separated and relative to their tree.
type ScanResult struct {
	Root     string
	NewDir   string
	OldDir   string
	NewFiles []duplicates.SourceFile
	OldFiles []duplicates.SourceFile
	// RepoRoot is set when the old tree came from a revision.
	RepoRoot string
	Revision string
}

// Service provides tree scanning.
type Service struct {
	config *config.Config
	opener vcs.Opener
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithOpener sets the VCS opener (for testing).
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// New creates a new scanner service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
		opener: vcs.DefaultOpener(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) fileScanner() (*scanner.Scanner, error) {
	var opts []scanner.Option
	if name := s.config.Duplicates.Language; name != "" {
		lang := parser.ParseLanguage(name)
		if lang == parser.LangUnknown {
			return nil, fmt.Errorf("%w: unknown language %q", duplicates.ErrConfigurationInvalid, name)
		}
		opts = append(opts, scanner.WithLanguage(lang))
	}
	return scanner.NewScanner(s.config, opts...), nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// Scan enumerates the source files of both trees.
func (s *Service) Scan(t Trees) (*ScanResult, error) {
	if t.Root == "" {
		t.Root = "."
	}
	root, err := filepath.Abs(t.Root)
	if err != nil {
		return nil, &PathError{Path: t.Root, Err: err}
	}
	if err := checkDir(root); err != nil {
		return nil, &PathError{Path: t.Root, Err: err}
	}
	if t.Source == "" {
		return nil, &PathError{Path: t.Source, Err: ErrNoTree}
	}
	if t.Destination == "" {
		if t.Against == "" {
			return nil, &PathError{Path: t.Destination, Err: ErrNoTree}
		}
		t.Destination = t.Source
	}

	fsc, err := s.fileScanner()
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		Root:   root,
		NewDir: resolve(root, t.Source),
		OldDir: resolve(root, t.Destination),
	}

	result.NewFiles, err = s.scanDir(fsc, result.NewDir, duplicates.SideNew)
	if err != nil {
		return nil, err
	}

	if t.Against != "" {
		if err := s.scanRevision(fsc, result, t.Against); err != nil {
			return nil, err
		}
		return result, nil
	}

	result.OldFiles, err = s.scanDir(fsc, result.OldDir, duplicates.SideOld)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDir
	}
	return nil
}

func (s *Service) scanDir(fsc *scanner.Scanner, dir string, side duplicates.Side) ([]duplicates.SourceFile, error) {
	if err := checkDir(dir); err != nil {
		return nil, &PathError{Path: dir, Err: err}
	}
	paths, err := fsc.ScanTree(dir)
	if err != nil {
		return nil, &ScanError{Path: dir, Err: err}
	}
	src := source.NewFilesystemAt(dir)
	files := make([]duplicates.SourceFile, len(paths))
	for i, p := range paths {
		files[i] = duplicates.LazySourceFile(p, side, src)
	}
	return files, nil
}

// scanRevision fills in the old tree from OldDir as it was at rev.
func (s *Service) scanRevision(fsc *scanner.Scanner, result *ScanResult, rev string) error {
	repo, err := s.opener.PlainOpenWithDetect(result.Root)
	if err != nil {
		return &GitError{Err: err}
	}
	commit, err := repo.ResolveRevision(rev)
	if err != nil {
		return &RevisionError{Revision: rev, Err: err}
	}
	tree, err := commit.Tree()
	if err != nil {
		return &RevisionError{Revision: rev, Err: err}
	}

	repoRoot, err := filepath.EvalSymlinks(repo.RepoPath())
	if err != nil {
		repoRoot = repo.RepoPath()
	}
	oldDir, err := filepath.EvalSymlinks(result.OldDir)
	if err != nil {
		oldDir = result.OldDir
	}
	rel, err := filepath.Rel(repoRoot, oldDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &PathError{Path: result.OldDir, Err: ErrOutsideRepo}
	}

	sub, err := tree.SubTree(filepath.ToSlash(rel))
	if err != nil {
		return &RevisionError{Revision: rev, Err: err}
	}
	entries, err := sub.Entries()
	if err != nil {
		return &RevisionError{Revision: rev, Err: err}
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	src := source.NewTree(sub)
	for _, p := range fsc.FilterPaths(paths) {
		result.OldFiles = append(result.OldFiles, duplicates.LazySourceFile(p, duplicates.SideOld, src))
	}
	result.RepoRoot = repoRoot
	result.Revision = rev
	return nil
}
