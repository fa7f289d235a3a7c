package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cda/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes cda's duplicate
detector as a tool LLMs can invoke, so an assistant can check how much of a
port or rewrite still mirrors the code it came from.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "cda": {
        "command": "cda",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - find_duplicates    Spans of a new tree copied from an old tree`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest and exit",
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	if c.Bool("manifest") {
		data, err := mcpserver.GenerateManifest(version)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}
	server := mcpserver.NewServer(version)
	return server.Run(context.Background())
}
