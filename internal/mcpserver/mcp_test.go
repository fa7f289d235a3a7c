package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/cda/internal/output"
	"github.com/panbanda/cda/internal/testutil"
	"github.com/panbanda/cda/pkg/analyzer/duplicates"
)

const ported = `package shop

func Discount(total float64, code string) float64 {
	switch code {
	case "SPRING":
		return total * 0.9
	case "VIP":
		if total > 100 {
			return total * 0.8
		}
		return total * 0.85
	}
	return total
}
`

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent: %T", result.Content[0])
	}
	return text.Text
}

// TestServerCreation verifies the MCP server can be created without panicking.
func TestServerCreation(t *testing.T) {
	server := NewServer("1.0.0-test")
	if server == nil || server.server == nil {
		t.Fatal("NewServer() returned an incomplete server")
	}
	if NewServer("") == nil {
		t.Fatal("NewServer(\"\") returned nil")
	}
}

func TestToolDescription(t *testing.T) {
	desc := describeFindDuplicates()
	for _, section := range []string{"USE WHEN:", "INTERPRETING RESULTS:", "METRICS RETURNED:"} {
		if !strings.Contains(desc, section) {
			t.Errorf("description missing %s section", section)
		}
	}
}

func TestGetFormat(t *testing.T) {
	tests := map[string]output.Format{
		"":         output.FormatTOON,
		"toon":     output.FormatTOON,
		"json":     output.FormatJSON,
		"yaml":     output.FormatYAML,
		"markdown": output.FormatMarkdown,
		"md":       output.FormatMarkdown,
		"text":     output.FormatText,
		"bogus":    output.FormatTOON,
	}
	for in, want := range tests {
		if got := getFormat(in); got != want {
			t.Errorf("getFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToolConfig(t *testing.T) {
	root := t.TempDir()

	cfg, err := toolConfig(FindDuplicatesInput{Root: root, Window: 25, Normalization: "exact", MinSpanTokens: 40})
	if err != nil {
		t.Fatalf("toolConfig() error: %v", err)
	}
	if cfg.Duplicates.Window != 25 || cfg.Duplicates.Guarantee != 25 {
		t.Errorf("window/guarantee = %d/%d, want 25/25", cfg.Duplicates.Window, cfg.Duplicates.Guarantee)
	}
	if cfg.Duplicates.Normalization != "exact" || cfg.Duplicates.MinSpanTokens != 40 {
		t.Errorf("unexpected duplicates config: %+v", cfg.Duplicates)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled for tool runs")
	}

	if _, err := toolConfig(FindDuplicatesInput{Root: root, Window: 20, Guarantee: 10}); err == nil {
		t.Error("guarantee below window should be rejected")
	}
	if _, err := toolConfig(FindDuplicatesInput{Root: root, Normalization: "fuzzy"}); err == nil {
		t.Error("unknown normalization should be rejected")
	}
}

func TestToolConfigReadsRootConfig(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"cda.toml": "[duplicates]\nwindow = 30\nguarantee = 40\n"})

	cfg, err := toolConfig(FindDuplicatesInput{Root: root})
	if err != nil {
		t.Fatalf("toolConfig() error: %v", err)
	}
	if cfg.Duplicates.Window != 30 || cfg.Duplicates.Guarantee != 40 {
		t.Errorf("window/guarantee = %d/%d, want 30/40", cfg.Duplicates.Window, cfg.Duplicates.Guarantee)
	}
}

func TestHandleFindDuplicates(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"new/discount.go": ported,
		"old/discount.go": ported,
	})

	result, _, err := handleFindDuplicates(context.Background(), nil, FindDuplicatesInput{
		Root:        root,
		Source:      "new",
		Destination: "old",
		Format:      "json",
	})
	if err != nil {
		t.Fatalf("handleFindDuplicates returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleFindDuplicates returned tool error: %s", textOf(t, result))
	}

	var got struct {
		Pairs []struct {
			NewFile  string  `json:"new_file"`
			SelfRate float64 `json:"self_rate"`
		} `json:"pairs"`
		Spans []duplicates.DuplicateSpan `json:"spans"`
	}
	if err := json.Unmarshal([]byte(textOf(t, result)), &got); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(got.Pairs) != 1 || got.Pairs[0].NewFile != "discount.go" || got.Pairs[0].SelfRate != 1 {
		t.Errorf("pairs = %+v", got.Pairs)
	}
	if len(got.Spans) != 1 || got.Spans[0].Similarity != 1 {
		t.Errorf("spans = %+v", got.Spans)
	}
}

func TestHandleFindDuplicatesDefaultToon(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"new/discount.go": ported,
		"old/discount.go": ported,
	})

	result, _, err := handleFindDuplicates(context.Background(), nil, FindDuplicatesInput{
		Root: root, Source: "new", Destination: "old",
	})
	if err != nil || result.IsError {
		t.Fatalf("handleFindDuplicates failed: %v", err)
	}
	text := textOf(t, result)
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		t.Errorf("default format should be toon, got JSON:\n%s", text)
	}
	if !strings.Contains(text, "discount.go") {
		t.Errorf("toon output missing file name:\n%s", text)
	}
}

func TestHandleFindDuplicatesNothingFound(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"new/a.py": "def add(a, b):\n    return a + b\n",
		"old/b.py": "class Stack:\n    pass\n",
	})

	result, _, err := handleFindDuplicates(context.Background(), nil, FindDuplicatesInput{
		Root: root, Source: "new", Destination: "old", Format: "markdown",
	})
	if err != nil || result.IsError {
		t.Fatalf("handleFindDuplicates failed: %v", err)
	}
	if !strings.Contains(textOf(t, result), "Everything is fine") {
		t.Errorf("expected no-duplicates message, got:\n%s", textOf(t, result))
	}
}

func TestHandleFindDuplicatesErrors(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"new/a.go": ported})
	if err := os.MkdirAll(filepath.Join(root, "old"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input FindDuplicatesInput
		want  string
	}{
		{"missing source", FindDuplicatesInput{Root: root, Destination: "old"}, "not specified"},
		{"empty old tree", FindDuplicatesInput{Root: root, Source: "new", Destination: "old"}, "no source files"},
		{"bad window", FindDuplicatesInput{Root: root, Source: "new", Destination: "old", Window: 10, Guarantee: 5}, "guarantee"},
		{"negative budget", FindDuplicatesInput{Root: root, Source: "new", Destination: "old", MaxTokens: -1}, "max_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := handleFindDuplicates(context.Background(), nil, tt.input)
			if err != nil {
				t.Fatalf("unexpected Go error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected IsError to be true")
			}
			if text := textOf(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("error %q does not mention %q", text, tt.want)
			}
		})
	}
}

func TestRenderWithinBudget(t *testing.T) {
	var spans []duplicates.DuplicateSpan
	for i := range 64 {
		spans = append(spans, duplicates.DuplicateSpan{
			NewFile: "new/some/deeply/nested/file.go", NewStartLine: i*10 + 1, NewEndLine: i*10 + 9,
			OldFile: "old/some/deeply/nested/file.go", OldStartLine: i*10 + 1, OldEndLine: i*10 + 9,
			Tokens: 40, Similarity: 1,
		})
	}
	a := &duplicates.Analysis{
		Pairs: []duplicates.FilePair{{NewFile: "new/some/deeply/nested/file.go", OldFile: "old/some/deeply/nested/file.go", Spans: spans}},
		Spans: spans,
	}

	full, err := renderWithin(a, output.FormatJSON, 0)
	if err != nil {
		t.Fatalf("renderWithin() error: %v", err)
	}
	budget := output.EstimateTokens(full) / 3

	text, err := renderWithin(a, output.FormatJSON, budget)
	if err != nil {
		t.Fatalf("renderWithin() error: %v", err)
	}
	if !strings.Contains(text, "of 64 spans") {
		t.Errorf("truncated output should say how many spans were kept:\n%s", text[len(text)-80:])
	}
	if strings.Contains(text, "Everything is fine") {
		t.Error("truncated output must not claim there are no duplicates")
	}
	if len(a.Spans) != 64 {
		t.Error("renderWithin must not modify the analysis")
	}
}

func TestParseFrontmatter(t *testing.T) {
	desc, body := parseFrontmatter([]byte("---\ndescription: Audit a port\n---\n\nDo the thing.\n"))
	if desc != "Audit a port" {
		t.Errorf("description = %q", desc)
	}
	if body != "Do the thing.\n" {
		t.Errorf("body = %q", body)
	}

	desc, body = parseFrontmatter([]byte("no frontmatter"))
	if desc != "" || body != "no frontmatter" {
		t.Errorf("parseFrontmatter without frontmatter = %q, %q", desc, body)
	}
}

func TestWorkflowPrompts(t *testing.T) {
	for _, w := range workflows {
		content, err := promptFiles.ReadFile("prompts/" + w.name + ".md")
		if err != nil {
			t.Fatalf("%s: %v", w.name, err)
		}
		if desc, _ := parseFrontmatter(content); desc == "" {
			t.Errorf("%s has no description", w.name)
		}
		if len(w.args) == 0 || w.args[0].Name != "root" || !w.args[0].Required {
			t.Errorf("%s must take a required root argument first", w.name)
		}
	}
}

func TestWorkflowRender(t *testing.T) {
	w := workflows[0]
	text, err := w.render("Audit.\n", map[string]string{
		"root":        "/repo",
		"source":      "app",
		"destination": " legacy ",
	})
	if err != nil {
		t.Fatalf("render() error: %v", err)
	}
	want := "Audit.\n\nfind_duplicates arguments:\n- root: /repo\n- source: app\n- destination: legacy\n"
	if text != want {
		t.Errorf("render() = %q, want %q", text, want)
	}

	if _, err := w.render("Audit.\n", map[string]string{"root": "/repo"}); err == nil {
		t.Error("render() without source should fail")
	}
}

func TestWorkflowHandler(t *testing.T) {
	w := workflows[1]
	h := w.handler("drift", "Compare.\n")

	res, err := h(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{
		Name:      w.name,
		Arguments: map[string]string{"root": "/repo", "source": "pkg", "against": "v1.0.0"},
	}})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.Description != "drift" || len(res.Messages) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "- against: v1.0.0") {
		t.Errorf("message = %+v", res.Messages[0].Content)
	}

	if _, err := h(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: w.name}}); err == nil {
		t.Error("handler without arguments should fail")
	}
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	if err != nil {
		t.Fatalf("GenerateManifest() error: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if m.Name != "io.github.panbanda/cda" || m.Title != "cda" || m.Version != "1.2.3" {
		t.Errorf("manifest = %+v", m)
	}
	if len(m.Packages) != 1 || m.Packages[0].Identifier != "ghcr.io/panbanda/cda:1.2.3" {
		t.Fatalf("packages = %+v", m.Packages)
	}
	if p := m.Packages[0]; p.Transport.Type != "stdio" || len(p.PackageArguments) != 1 || p.PackageArguments[0].Value != "mcp" {
		t.Errorf("package = %+v", p)
	}

	data, err = GenerateManifest("")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &m); err != nil || m.Version != "0.0.0" {
		t.Errorf("manifest without version = %+v, %v", m, err)
	}
}
