package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cda/internal/fileproc"
	"github.com/panbanda/cda/internal/output"
	"github.com/panbanda/cda/internal/progress"
	"github.com/panbanda/cda/internal/report"
	"github.com/panbanda/cda/internal/service/analysis"
	scannerSvc "github.com/panbanda/cda/internal/service/scanner"
	"github.com/panbanda/cda/pkg/config"
)

func analyzeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Value:   ".",
			Usage:   "Directory containing both trees",
		},
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "The new tree, relative to --root",
		},
		&cli.StringFlag{
			Name:    "destination",
			Aliases: []string{"d"},
			Usage:   "The old tree, relative to --root",
		},
		&cli.StringFlag{
			Name:  "against",
			Usage: "Read the old tree from this git revision (defaults --destination to --source)",
		},
		&cli.StringFlag{
			Name:    "language",
			Aliases: []string{"l"},
			Usage:   "Only compare files of this language (default: all supported)",
		},
		&cli.IntFlag{
			Name:  "minimum-tokens",
			Usage: "Shortest duplicate reported, in tokens (default: the window)",
		},
		&cli.IntFlag{
			Name:  "window",
			Usage: "Fingerprint window in tokens",
		},
		&cli.IntFlag{
			Name:  "guarantee",
			Usage: "Copies at least this many tokens long are always found",
		},
		&cli.StringFlag{
			Name:  "normalize",
			Usage: "Normalization: exact or identifier-fold",
		},
		&cli.IntFlag{
			Name:  "gap",
			Usage: "Merge spans separated by at most this many tokens",
		},
		&cli.IntFlag{
			Name:  "offset-tolerance",
			Usage: "Allowed drift between new and old offsets when merging",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Parallel workers (default: 2x CPUs)",
		},
		&cli.Int64Flag{
			Name:  "max-file-size",
			Usage: "Skip files larger than this many bytes (0 = no limit)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown, json, toon, yaml",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "report",
			Value: true,
			Usage: "Write a plain-text report under --root when duplicates are found",
		},
		&cli.StringFlag{
			Name:  "report-file",
			Usage: "Report file name, relative to --root",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (TOML, YAML, or JSON)",
			EnvVars: []string{"CDA_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable the token cache",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Print skipped files and other diagnostics",
		},
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	if c.Args().Len() > 0 {
		return fmt.Errorf("unexpected argument %q (trees are given with -s and -d)", c.Args().First())
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	trees := scannerSvc.Trees{
		Root:        c.String("root"),
		Source:      c.String("source"),
		Destination: c.String("destination"),
		Against:     c.String("against"),
	}
	spinner := progress.NewSpinner(c.App.ErrWriter, "Scanning trees...")
	scan, err := scannerSvc.New(scannerSvc.WithConfig(cfg)).Scan(trees)
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTrackerTo(c.App.ErrWriter, "Finding duplicates...", len(scan.NewFiles)+len(scan.OldFiles))
	var diags fileproc.ProcessingErrors
	result, err := analysis.New(analysis.WithConfig(cfg)).Analyze(ctx, scan, analysis.Options{
		OnProgress:  tracker.Tick,
		NoCache:     c.Bool("no-cache"),
		Diagnostics: &diags,
	})
	if err != nil {
		tracker.FinishError(err)
		return fmt.Errorf("analysis failed: %w", err)
	}
	tracker.FinishSuccess()

	msgs := messages(c, cfg)
	if cfg.Output.Verbose {
		for _, d := range result.Diagnostics {
			msgs.Warning("skipped %s: %v", d.Path, d.Err)
		}
		if n := result.Summary.OversizedFiles; n > 0 && cfg.Duplicates.MaxFileSize > 0 {
			msgs.Warning("skipped %d files over %s", n, humanize.IBytes(uint64(cfg.Duplicates.MaxFileSize)))
		}
		if n := result.Summary.SuppressedOccurrences; n > 0 {
			msgs.Warning("repetitive code: %s occurrences over the per-hash limit of %d were not compared",
				humanize.Comma(int64(n)), result.Config.EffectiveMaxOccurrences())
		}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rep := report.NewRenderer().Build(result)
	if err := formatter.Output(rep); err != nil {
		return err
	}

	if cfg.Output.Report && result.HasDuplicates() {
		path, err := report.WriteFile(scan.Root, cfg.Output.ReportFile, rep)
		if err != nil {
			return err
		}
		msgs.Info("Report written to %s", path)
	}
	return nil
}

func colored(c *cli.Context, cfg *config.Config) bool {
	return cfg.Output.Color && !c.Bool("no-color") && !color.NoColor
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := output.ParseFormat(cfg.Output.Format)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(format, path, false)
	}
	return output.NewWriterFormatter(format, c.App.Writer, colored(c, cfg)), nil
}

// messages writes status lines to stderr so they never mix with the report.
func messages(c *cli.Context, cfg *config.Config) *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, c.App.ErrWriter, colored(c, cfg))
}
