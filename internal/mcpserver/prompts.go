package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/port-audit.md prompts/revision-drift.md
var promptFiles embed.FS

// promptFrontmatter is parsed from YAML frontmatter in prompt files.
type promptFrontmatter struct {
	Description string `yaml:"description"`
}

// workflow is a prompt that walks a client through one find_duplicates
// investigation. Its arguments are handed back as tool arguments.
type workflow struct {
	name string
	args []*mcp.PromptArgument
}

var rootArg = &mcp.PromptArgument{
	Name:        "root",
	Description: "Repository root both trees are resolved against",
	Required:    true,
}

var workflows = []workflow{
	{
		name: "port-audit",
		args: []*mcp.PromptArgument{
			rootArg,
			{Name: "source", Description: "The new tree, relative to root", Required: true},
			{Name: "destination", Description: "The old tree the port came from, relative to root", Required: true},
			{Name: "normalization", Description: "exact or identifier-fold (default)"},
		},
	},
	{
		name: "revision-drift",
		args: []*mcp.PromptArgument{
			rootArg,
			{Name: "source", Description: "Directory to inspect, relative to root", Required: true},
			{Name: "against", Description: "Earlier git revision to compare with", Required: true},
		},
	},
}

// registerPrompts registers every workflow with its embedded instructions.
func (s *Server) registerPrompts() {
	for _, w := range workflows {
		content, err := promptFiles.ReadFile("prompts/" + w.name + ".md")
		if err != nil {
			panic(fmt.Sprintf("prompt %s is not embedded: %v", w.name, err))
		}
		description, body := parseFrontmatter(content)
		s.server.AddPrompt(&mcp.Prompt{
			Name:        w.name,
			Description: description,
			Arguments:   w.args,
		}, w.handler(description, body))
	}
}

// parseFrontmatter extracts YAML frontmatter and returns description and body.
func parseFrontmatter(content []byte) (description string, body string) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return "", string(content)
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return "", string(content)
	}

	var fm promptFrontmatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return "", string(content)
	}

	body = strings.TrimPrefix(string(rest[end+5:]), "\n")
	return fm.Description, body
}

func (w workflow) handler(description, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var given map[string]string
		if req != nil && req.Params != nil {
			given = req.Params.Arguments
		}
		text, err := w.render(body, given)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: text},
				},
			},
		}, nil
	}
}

// render appends the given arguments to body in declaration order.
func (w workflow) render(body string, given map[string]string) (string, error) {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\nfind_duplicates arguments:\n")
	for _, a := range w.args {
		v := strings.TrimSpace(given[a.Name])
		if v == "" {
			if a.Required {
				return "", fmt.Errorf("prompt %s: missing argument %q", w.name, a.Name)
			}
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, v)
	}
	return b.String(), nil
}
