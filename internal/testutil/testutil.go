// Package testutil holds on-disk fixtures shared by the command and service tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Billing is a Go function long enough to clear the default window when it
// appears in both trees.
const Billing = `package billing

func Total(items []Item, tax float64) float64 {
	sum := 0.0
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		sum += it.Price * float64(it.Qty)
	}
	return sum * (1 + tax)
}
`

// Queue shares no window with Billing.
const Queue = `package other

type Queue struct{ items []string }

func (q *Queue) Push(s string) { q.items = append(q.items, s) }
`

// WriteFile writes content to a file in the real filesystem, creating parents.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// WriteTree creates files under root from a map of slash-separated relative
// path to content.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}
}
