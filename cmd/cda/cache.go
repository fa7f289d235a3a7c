package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cda/internal/cache"
	"github.com/panbanda/cda/internal/output"
)

func cacheCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Value:   ".",
			Usage:   "Project root the cache directory is relative to",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
		},
	}
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the token cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache entry count, size and age",
				Flags:  append(flags, &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text, json, yaml"}),
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached token stream",
				Flags:  flags,
				Action: runCacheClear,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, string, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	cc, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Dir, err)
	}
	return cc, cfg.Cache.Dir, nil
}

func runCacheStats(c *cli.Context) error {
	cc, dir, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := cc.GetStats()
	if err != nil {
		return err
	}

	format := output.ParseFormat(c.String("format"))
	if format.Structured() {
		return output.Encode(c.App.Writer, format, map[string]any{
			"dir":        dir,
			"entries":    stats.Entries,
			"total_size": stats.TotalSize,
			"oldest_age": stats.OldestAge.Round(time.Second).String(),
			"newest_age": stats.NewestAge.Round(time.Second).String(),
		})
	}

	fmt.Fprintf(c.App.Writer, "Cache:   %s\n", dir)
	fmt.Fprintf(c.App.Writer, "Entries: %d\n", stats.Entries)
	fmt.Fprintf(c.App.Writer, "Size:    %s\n", humanize.IBytes(uint64(stats.TotalSize)))
	if stats.Entries > 0 {
		fmt.Fprintf(c.App.Writer, "Oldest:  %s\n", stats.OldestAge.Round(time.Second))
		fmt.Fprintf(c.App.Writer, "Newest:  %s\n", stats.NewestAge.Round(time.Second))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	cc, dir, err := openCache(c)
	if err != nil {
		return err
	}
	if err := cc.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	output.NewWriterFormatter(output.FormatText, c.App.Writer, !color.NoColor).Success("Cleared %s", dir)
	return nil
}
