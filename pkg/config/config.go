package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Normalization level names accepted in config files and flags.
const (
	NormalizationExact          = "exact"
	NormalizationIdentifierFold = "identifier-fold"
)

// Config holds all configuration options for cda.
type Config struct {
	// Detection settings
	Duplicates DuplicateConfig `koanf:"duplicates" toml:"duplicates"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Token cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// DuplicateConfig controls the detection engine.
type DuplicateConfig struct {
	Normalization   string `koanf:"normalization" toml:"normalization"`
	Window          int    `koanf:"window" toml:"window"`
	Guarantee       int    `koanf:"guarantee" toml:"guarantee"`
	MergeGap        int    `koanf:"merge_gap" toml:"merge_gap"`
	OffsetTolerance int    `koanf:"offset_tolerance" toml:"offset_tolerance"`
	MinSpanTokens   int    `koanf:"min_span_tokens" toml:"min_span_tokens"` // 0 = window
	Workers         int    `koanf:"workers" toml:"workers"`                 // 0 = 2x NumCPU
	Language        string `koanf:"language" toml:"language"`               // empty = detect per file
	MaxFileSize     int64  `koanf:"max_file_size" toml:"max_file_size"`     // bytes, 0 = no limit
	MaxOccurrences  int    `koanf:"max_occurrences" toml:"max_occurrences"` // per hash, 0 = default
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching of token streams.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format     string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color      bool   `koanf:"color" toml:"color"`
	Verbose    bool   `koanf:"verbose" toml:"verbose"`
	Report     bool   `koanf:"report" toml:"report"`           // write a plain-text report under the root
	ReportFile string `koanf:"report_file" toml:"report_file"` // relative to the root
}

// DefaultDuplicateConfig returns the detector defaults.
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{
		Normalization:   NormalizationIdentifierFold,
		Window:          15,
		Guarantee:       15,
		MergeGap:        0,
		OffsetTolerance: 0,
		MinSpanTokens:   0,
		Workers:         0,
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Duplicates: DefaultDuplicateConfig(),
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".cda",
				"dist",
				"build",
				"Pods",
				"__pycache__",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".cda/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:     "text",
			Color:      true,
			Verbose:    false,
			Report:     true,
			ReportFile: "report.txt",
		},
	}
}

// EffectiveMinSpanTokens resolves the zero default to the window size.
func (d DuplicateConfig) EffectiveMinSpanTokens() int {
	if d.MinSpanTokens <= 0 {
		return d.Window
	}
	return d.MinSpanTokens
}

// Validate checks that detector settings are usable.
func (d DuplicateConfig) Validate() error {
	switch strings.ToLower(d.Normalization) {
	case "", NormalizationExact, NormalizationIdentifierFold, "fold":
	default:
		return fmt.Errorf("%w: unknown normalization %q (want %s or %s)",
			ErrInvalid, d.Normalization, NormalizationExact, NormalizationIdentifierFold)
	}
	if d.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalid, d.Window)
	}
	if d.Guarantee < d.Window {
		return fmt.Errorf("%w: guarantee window %d is smaller than window %d", ErrInvalid, d.Guarantee, d.Window)
	}
	if d.MergeGap < 0 {
		return fmt.Errorf("%w: merge_gap must not be negative, got %d", ErrInvalid, d.MergeGap)
	}
	if d.OffsetTolerance < 0 {
		return fmt.Errorf("%w: offset_tolerance must not be negative, got %d", ErrInvalid, d.OffsetTolerance)
	}
	if d.MinSpanTokens < 0 {
		return fmt.Errorf("%w: min_span_tokens must not be negative, got %d", ErrInvalid, d.MinSpanTokens)
	}
	if d.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, d.Workers)
	}
	if d.MaxFileSize < 0 {
		return fmt.Errorf("%w: max_file_size must not be negative, got %d", ErrInvalid, d.MaxFileSize)
	}
	if d.MaxOccurrences < 0 {
		return fmt.Errorf("%w: max_occurrences must not be negative, got %d", ErrInvalid, d.MaxOccurrences)
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Duplicates.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "text", "json", "markdown", "md", "toon", "yaml", "yml":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalid, c.Output.Format)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache ttl must not be negative, got %d", ErrInvalid, c.Cache.TTL)
	}
	return nil
}

// parserFor picks a koanf parser from the file extension, defaulting to TOML.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	default:
		return toml.Parser()
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configNames are the file names searched by LoadOrDefault, in priority order.
var configNames = []string{
	"cda.toml",
	"cda.yaml",
	"cda.yml",
	"cda.json",
	".cda.toml",
	".cda.yaml",
	".cda.yml",
	".cda.json",
}

// FindConfigFile returns the first config file found in dir or dir/.cda.
func FindConfigFile(dir string) string {
	for _, sub := range []string{"", ".cda"} {
		for _, name := range configNames {
			path := filepath.Join(dir, sub, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := FindConfigFile("."); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dir  string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads an explicit config file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDir searches dir (instead of the working directory) for a config file.
func WithSearchDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
	}
}

// LoadConfig loads and validates configuration.
// An explicit path that cannot be loaded is an error; a missing search result is not.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	path := o.path
	if path == "" {
		path = FindConfigFile(o.dir)
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	// Patterns without a slash match the base name; the rest match the whole
	// slash-separated path and may use **.
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		name := base
		if strings.Contains(pattern, "/") {
			name = slashed
		}
		if matched, _ := doublestar.Match(pattern, name); matched {
			return true
		}
	}

	return false
}
