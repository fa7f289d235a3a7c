package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/cda/internal/output"
	"github.com/panbanda/cda/internal/report"
	"github.com/panbanda/cda/internal/service/analysis"
	scannerSvc "github.com/panbanda/cda/internal/service/scanner"
	"github.com/panbanda/cda/pkg/analyzer/duplicates"
	"github.com/panbanda/cda/pkg/config"
)

// FindDuplicatesInput is the input of the find_duplicates tool.
type FindDuplicatesInput struct {
	Root          string `json:"root,omitempty" jsonschema:"Directory containing both trees. Defaults to the current directory."`
	Source        string `json:"source" jsonschema:"The new tree, relative to root."`
	Destination   string `json:"destination,omitempty" jsonschema:"The old tree, relative to root. Defaults to source when against is set."`
	Against       string `json:"against,omitempty" jsonschema:"Read the old tree from this git revision (branch, tag or hash)."`
	Language      string `json:"language,omitempty" jsonschema:"Only compare files of this language. Default: every supported language."`
	Window        int    `json:"window,omitempty" jsonschema:"Fingerprint window in tokens. Default 15."`
	Guarantee     int    `json:"guarantee,omitempty" jsonschema:"Matches at least this many tokens long are always found. Default 15."`
	Normalization string `json:"normalization,omitempty" jsonschema:"exact or identifier-fold (default)."`
	MinSpanTokens int    `json:"min_span_tokens,omitempty" jsonschema:"Shortest span reported, in tokens. Default: the window."`
	Format        string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
	MaxTokens     int    `json:"max_tokens,omitempty" jsonschema:"Approximate LLM token budget for the response. 0 means unlimited."`
}

func getFormat(name string) output.Format {
	switch name {
	case "json":
		return output.FormatJSON
	case "yaml", "yml":
		return output.FormatYAML
	case "markdown", "md":
		return output.FormatMarkdown
	case "text":
		return output.FormatText
	default:
		return output.FormatTOON
	}
}

// toolConfig loads the config found under root and applies the tool inputs.
func toolConfig(input FindDuplicatesInput) (*config.Config, error) {
	res, err := config.LoadConfig(config.WithSearchDir(input.Root))
	if err != nil {
		return nil, err
	}
	cfg := res.Config
	cfg.Cache.Enabled = false

	d := &cfg.Duplicates
	if input.Language != "" {
		d.Language = input.Language
	}
	if input.Window > 0 {
		d.Window = input.Window
		if input.Guarantee == 0 && d.Guarantee < d.Window {
			d.Guarantee = d.Window
		}
	}
	if input.Guarantee > 0 {
		d.Guarantee = input.Guarantee
	}
	if input.Normalization != "" {
		d.Normalization = input.Normalization
	}
	if input.MinSpanTokens > 0 {
		d.MinSpanTokens = input.MinSpanTokens
	}
	if err := cfg.Duplicates.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func render(a *duplicates.Analysis, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(format, &buf, false).Output(report.NewRenderer().Build(a)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderWithin renders a, dropping spans from the end until the estimate fits
// maxTokens. Pairs and the summary are always kept.
func renderWithin(a *duplicates.Analysis, format output.Format, maxTokens int) (string, error) {
	text, err := render(a, format)
	if err != nil || maxTokens <= 0 || output.EstimateTokens(text) <= maxTokens {
		return text, err
	}

	total := len(a.Spans)
	trimmed := *a
	for n := total / 2; ; n /= 2 {
		trimmed.Spans = a.Spans[:n]
		text, err = render(&trimmed, format)
		if err != nil {
			return "", err
		}
		if n == 0 || output.EstimateTokens(text) <= maxTokens {
			return text + fmt.Sprintf("\n[showing %d of %d spans, ~%s tokens]\n",
				n, total, output.FormatTokenCount(output.EstimateTokens(text))), nil
		}
	}
}

func toolResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func handleFindDuplicates(ctx context.Context, req *mcp.CallToolRequest, input FindDuplicatesInput) (*mcp.CallToolResult, any, error) {
	if input.Root == "" {
		input.Root = "."
	}
	if input.MaxTokens < 0 {
		return toolError("max_tokens must not be negative")
	}

	cfg, err := toolConfig(input)
	if err != nil {
		return toolError(err.Error())
	}

	a, _, err := analysis.New(analysis.WithConfig(cfg)).Run(ctx, scannerSvc.Trees{
		Root:        input.Root,
		Source:      input.Source,
		Destination: input.Destination,
		Against:     input.Against,
	}, analysis.Options{})
	if err != nil {
		if errors.Is(err, duplicates.ErrEmptyTree) {
			return toolError("no source files found: " + err.Error())
		}
		return toolError(err.Error())
	}

	text, err := renderWithin(a, getFormat(input.Format), input.MaxTokens)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(text)
}
