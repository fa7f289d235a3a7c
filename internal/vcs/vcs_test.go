package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestNewGitOpener(t *testing.T) {
	opener := NewGitOpener()
	if opener == nil {
		t.Fatal("NewGitOpener() returned nil")
	}
}

func TestGitOpener_PlainOpen(t *testing.T) {
	repoPath := initTestRepo(t)

	opener := NewGitOpener()
	repo, err := opener.PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("PlainOpen() error = %v", err)
	}
	if repo == nil {
		t.Fatal("PlainOpen() returned nil repository")
	}
}

func TestGitOpener_PlainOpen_NonExistent(t *testing.T) {
	opener := NewGitOpener()
	_, err := opener.PlainOpen("/nonexistent/path")
	if err == nil {
		t.Error("PlainOpen() should return error for non-existent path")
	}
}

func TestGitOpener_PlainOpenWithDetect(t *testing.T) {
	repoPath := initTestRepo(t)

	subDir := filepath.Join(repoPath, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	opener := NewGitOpener()
	repo, err := opener.PlainOpenWithDetect(subDir)
	if err != nil {
		t.Fatalf("PlainOpenWithDetect() error = %v", err)
	}

	want, _ := filepath.EvalSymlinks(repoPath)
	got, _ := filepath.EvalSymlinks(repo.RepoPath())
	if got != want {
		t.Errorf("RepoPath() = %q, want %q", got, want)
	}
}

func TestGitRepository_Head(t *testing.T) {
	repoPath := initTestRepoWithFiles(t, map[string]string{"test.txt": "initial content\n"})

	repo, err := NewGitOpener().PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("PlainOpen() error = %v", err)
	}

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head.Hash().IsZero() {
		t.Error("Hash() returned zero hash")
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatalf("CommitObject() error = %v", err)
	}
	if commit.Hash() != head.Hash() {
		t.Error("Commit hash doesn't match head hash")
	}
	if commit.Message() != "Initial commit" {
		t.Errorf("Message() = %q", commit.Message())
	}
}

func TestGitRepository_ResolveRevision(t *testing.T) {
	repoPath := initTestRepoWithFiles(t, map[string]string{"a.go": "package a\n"})

	repo, err := NewGitOpener().PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("PlainOpen() error = %v", err)
	}

	head, _ := repo.Head()
	commit, err := repo.ResolveRevision("HEAD")
	if err != nil {
		t.Fatalf("ResolveRevision(HEAD) error = %v", err)
	}
	if commit.Hash() != head.Hash() {
		t.Error("ResolveRevision(HEAD) should match Head()")
	}

	if _, err := repo.ResolveRevision("no-such-branch"); !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("ResolveRevision() error = %v, want ErrRevisionNotFound", err)
	}
}

func TestGitTree_EntriesAndFile(t *testing.T) {
	repoPath := initTestRepoWithFiles(t, map[string]string{
		"main.go":         "package main\n",
		"old/lib/util.go": "package lib\n\nfunc Util() {}\n",
		"old/README.md":   "# old\n",
	})

	repo, err := NewGitOpener().PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("PlainOpen() error = %v", err)
	}
	commit, err := repo.ResolveRevision("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := commit.Tree()
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	entries, err := tree.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)
	want := []string{"main.go", "old/README.md", "old/lib/util.go"}
	if len(paths) != len(want) {
		t.Fatalf("Entries() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Entries()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	content, err := tree.File("old/lib/util.go")
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if string(content) != "package lib\n\nfunc Util() {}\n" {
		t.Errorf("File() = %q", content)
	}

	sub, err := tree.SubTree("old")
	if err != nil {
		t.Fatalf("SubTree() error = %v", err)
	}
	subEntries, err := sub.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(subEntries) != 2 {
		t.Errorf("SubTree entries = %v, want 2", subEntries)
	}
	if _, err := sub.File("lib/util.go"); err != nil {
		t.Errorf("SubTree File() error = %v", err)
	}

	same, err := tree.SubTree(".")
	if err != nil || same != tree {
		t.Error("SubTree(\".\") should return the same tree")
	}

	if _, err := tree.SubTree("missing"); err == nil {
		t.Error("SubTree() should fail for a missing directory")
	}
	if _, err := tree.File("missing.go"); err == nil {
		t.Error("File() should fail for a missing file")
	}
}

func TestDefaultOpener(t *testing.T) {
	orig := DefaultOpener()
	defer SetDefaultOpener(orig)

	custom := NewGitOpener()
	SetDefaultOpener(custom)
	if DefaultOpener() != custom {
		t.Error("SetDefaultOpener() did not replace the default")
	}
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	repoPath := t.TempDir()
	_, err := git.PlainInit(repoPath, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}
	return repoPath
}

func initTestRepoWithFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	repoPath := t.TempDir()
	repo, err := git.PlainInit(repoPath, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		full := filepath.Join(repoPath, name)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Add(filepath.ToSlash(name)); err != nil {
			t.Fatal(err)
		}
	}

	_, err = w.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return repoPath
}
