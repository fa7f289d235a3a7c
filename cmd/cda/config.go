package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cda/internal/output"
	"github.com/panbanda/cda/pkg/config"
)

// loadConfig loads the config file (explicit, or searched for under --root)
// and applies every flag the user set on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}

	opts := []config.LoadOption{config.WithSearchDir(root)}
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	d := &cfg.Duplicates
	if c.IsSet("language") {
		d.Language = c.String("language")
	}
	if c.IsSet("window") {
		d.Window = c.Int("window")
		if !c.IsSet("guarantee") && d.Guarantee < d.Window {
			d.Guarantee = d.Window
		}
	}
	if c.IsSet("guarantee") {
		d.Guarantee = c.Int("guarantee")
	}
	if c.IsSet("minimum-tokens") {
		d.MinSpanTokens = c.Int("minimum-tokens")
	}
	if c.IsSet("normalize") {
		d.Normalization = c.String("normalize")
	}
	if c.IsSet("gap") {
		d.MergeGap = c.Int("gap")
	}
	if c.IsSet("offset-tolerance") {
		d.OffsetTolerance = c.Int("offset-tolerance")
	}
	if c.IsSet("workers") {
		d.Workers = c.Int("workers")
	}
	if c.IsSet("max-file-size") {
		d.MaxFileSize = c.Int64("max-file-size")
	}

	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("report") {
		cfg.Output.Report = c.Bool("report")
	}
	if c.IsSet("report-file") {
		cfg.Output.ReportFile = c.String("report-file")
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}

	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(root, cfg.Cache.Dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configCmd() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file",
	}
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a cda configuration file for syntax errors and invalid values.

Examples:
  cda config validate                 # Validates default config locations
  cda config validate -c cda.toml     # Validates specific file`,
				Flags:  []cli.Flag{configFlag},
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file.

Examples:
  cda config show              # Show effective config
  cda config show -c cda.toml  # Show config from specific file`,
				Flags:  []cli.Flag{configFlag},
				Action: runConfigShow,
			},
		},
	}
}

func configLoadOptions(c *cli.Context) []config.LoadOption {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return opts
}

func runConfigValidate(c *cli.Context) error {
	result, err := config.LoadConfig(configLoadOptions(c)...)
	if err == nil && result.Source != "" {
		err = config.ValidateSchema(result.Source)
	}
	msgs := output.NewWriterFormatter(output.FormatText, c.App.Writer, !color.NoColor)
	if err != nil {
		msgs.Error("Configuration validation failed:")
		fmt.Fprintf(c.App.Writer, "  - %s\n", err)
		return err
	}

	if result.Source != "" {
		msgs.Success("Configuration valid: %s", result.Source)
	} else {
		msgs.Warning("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	result, err := config.LoadConfig(configLoadOptions(c)...)
	if err != nil {
		return err
	}

	if result.Source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(c.App.Writer, string(content))
	return nil
}
