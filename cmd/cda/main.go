package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "cda",
		Usage:   "Find code a new source tree copied from an old one",
		Version: version,
		Description: `cda compares two source trees under a common root and reports the regions
of the new tree (--source) that duplicate regions of the old tree
(--destination), with line ranges, similarity and per-file duplication rates.

Examples:
  cda -r . -s app -d legacy
  cda -r . -s app -d legacy --language swift --minimum-tokens 50
  cda -r . -s src --against v1.0.0        # old tree read from a git tag
  cda -r . -s app -d legacy -f json -o dup.json`,
		Flags:  analyzeFlags(),
		Action: runAnalyzeCmd,
		Commands: []*cli.Command{
			initCmd(),
			configCmd(),
			cacheCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
