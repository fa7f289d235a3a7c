// Package scanner enumerates the source files of a tree.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/cda/pkg/config"
	"github.com/panbanda/cda/pkg/parser"
)

// genericExtensions are source files without a grammar; they are
// tokenized by the generic scanner.
var genericExtensions = map[string]bool{
	".scala": true, ".sc": true, ".lua": true, ".dart": true, ".groovy": true,
	".m": true, ".mm": true, ".sql": true, ".vue": true, ".svelte": true,
	".css": true, ".scss": true, ".less": true, ".pl": true, ".pm": true,
	".r": true, ".jl": true, ".zig": true, ".ex": true, ".exs": true,
	".erl": true, ".hs": true, ".ml": true, ".fs": true, ".vb": true,
	".f90": true, ".pas": true, ".d": true, ".nim": true, ".cls": true,
}

// Scanner finds source files in a directory.
type Scanner struct {
	config   *config.Config
	language parser.Language

	patterns  gitignore.Matcher // config patterns, relative to the scan root
	gitRoot   string
	gitignore gitignore.Matcher // .gitignore rules, relative to gitRoot
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLanguage keeps only files of lang.
func WithLanguage(lang parser.Language) Option {
	return func(s *Scanner) {
		s.language = lang
	}
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config, opts ...Option) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns compiles config patterns and, when enabled, every
// .gitignore of the enclosing repository.
func (s *Scanner) loadExcludePatterns(root string) {
	var patterns []gitignore.Pattern
	for _, p := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	s.patterns = gitignore.NewMatcher(patterns)

	s.gitRoot, s.gitignore = "", nil
	if !s.config.Exclude.Gitignore {
		return
	}
	gitRoot := findGitRoot(root)
	if gitRoot == "" {
		return
	}
	gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(gitPatterns) == 0 {
		return
	}
	s.gitRoot = gitRoot
	s.gitignore = gitignore.NewMatcher(gitPatterns)
}

// isExcluded reports whether rel (relative to root) is filtered out.
func (s *Scanner) isExcluded(root, rel string, isDir bool) bool {
	if rel == "." {
		return false
	}
	if isDir && slices.Contains(s.config.Exclude.Dirs, filepath.Base(rel)) {
		return true
	}
	if !isDir && s.config.ShouldExclude(rel) {
		return true
	}
	if s.patterns != nil && s.patterns.Match(splitPath(rel), isDir) {
		return true
	}
	if s.gitignore != nil {
		if fromGit, err := filepath.Rel(s.gitRoot, filepath.Join(root, rel)); err == nil && !strings.HasPrefix(fromGit, "..") {
			return s.gitignore.Match(splitPath(fromGit), isDir)
		}
	}
	return false
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}

// Accepts reports whether a file path has a language the scanner keeps.
func (s *Scanner) Accepts(p string) bool {
	lang := parser.DetectLanguage(p)
	if s.language != "" {
		return lang == s.language
	}
	if lang != parser.LangUnknown {
		return true
	}
	return genericExtensions[strings.ToLower(filepath.Ext(p))]
}

// ScanTree walks root and returns the source files as slash-separated
// paths relative to root, sorted.
// Symlinks resolving outside root are skipped.
func (s *Scanner) ScanTree(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absRoot)

	files := make([]string, 0, 1024)
	walkErr := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
			info, err := os.Stat(resolved)
			if err != nil || info.IsDir() {
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(absRoot, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(absRoot, rel, false) || !s.Accepts(p) {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})

	slices.Sort(files)
	return files, walkErr
}

// ScanDir is ScanTree with paths joined back onto root.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	rel, err := s.ScanTree(root)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(rel))
	for i, r := range rel {
		files[i] = filepath.Join(root, filepath.FromSlash(r))
	}
	return files, nil
}

// FilterPaths applies the config exclusions and language filter to
// slash-separated paths, such as the entries of a git tree.
func (s *Scanner) FilterPaths(paths []string) []string {
	var patterns []gitignore.Pattern
	for _, p := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	m := gitignore.NewMatcher(patterns)

	var out []string
	for _, p := range paths {
		parts := strings.Split(p, "/")
		if dirExcluded(parts[:len(parts)-1], s.config.Exclude.Dirs) {
			continue
		}
		if s.config.ShouldExclude(filepath.FromSlash(p)) || m.Match(parts, false) || !s.Accepts(p) {
			continue
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func dirExcluded(dirs, excluded []string) bool {
	for _, d := range dirs {
		if slices.Contains(excluded, d) {
			return true
		}
	}
	return false
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(p, root string) bool {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
