package duplicates

import (
	"fmt"

	"github.com/panbanda/cda/pkg/config"
	"github.com/panbanda/cda/pkg/parser"
)

// Config holds duplicate detection configuration.
type Config struct {
	Normalization   Normalization   `json:"normalization"`
	Window          int             `json:"window"`
	Guarantee       int             `json:"guarantee"`
	MergeGap        int             `json:"merge_gap"`
	OffsetTolerance int             `json:"offset_tolerance"`
	MinSpanTokens   int             `json:"min_span_tokens"` // 0 = Window
	Workers         int             `json:"workers,omitempty"`
	Language        parser.Language `json:"language,omitempty"` // empty = detect per file
	MaxFileSize     int64           `json:"max_file_size,omitempty"`
	MaxOccurrences  int             `json:"max_occurrences,omitempty"` // 0 = DefaultMaxOccurrences
}

// DefaultConfig returns the detector defaults: 15-token windows, a
// 15-hash guarantee window, no gap or drift tolerance, identifier folding.
func DefaultConfig() Config {
	return Config{
		Normalization: IdentifierFold,
		Window:        15,
		Guarantee:     15,
	}
}

// ConfigFrom converts file/flag configuration into detector configuration.
func ConfigFrom(dc config.DuplicateConfig) (Config, error) {
	norm, err := ParseNormalization(dc.Normalization)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Normalization:   norm,
		Window:          dc.Window,
		Guarantee:       dc.Guarantee,
		MergeGap:        dc.MergeGap,
		OffsetTolerance: dc.OffsetTolerance,
		MinSpanTokens:   dc.MinSpanTokens,
		Workers:         dc.Workers,
		MaxFileSize:     dc.MaxFileSize,
		MaxOccurrences:  dc.MaxOccurrences,
	}
	if dc.Language != "" {
		lang := parser.ParseLanguage(dc.Language)
		if lang == parser.LangUnknown {
			return Config{}, fmt.Errorf("%w: unknown language %q", ErrConfigurationInvalid, dc.Language)
		}
		cfg.Language = lang
	}
	return cfg, nil
}

// EffectiveMinSpanTokens resolves the zero default to the window size.
func (c Config) EffectiveMinSpanTokens() int {
	if c.MinSpanTokens <= 0 {
		return c.Window
	}
	return c.MinSpanTokens
}

// EffectiveMaxOccurrences resolves the zero default of the per-hash cap.
func (c Config) EffectiveMaxOccurrences() int {
	if c.MaxOccurrences <= 0 {
		return DefaultMaxOccurrences
	}
	return c.MaxOccurrences
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Normalization != Exact && c.Normalization != IdentifierFold {
		return fmt.Errorf("%w: unknown normalization %d", ErrConfigurationInvalid, c.Normalization)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrConfigurationInvalid, c.Window)
	}
	if c.Guarantee < c.Window {
		return fmt.Errorf("%w: guarantee window %d is smaller than window %d", ErrConfigurationInvalid, c.Guarantee, c.Window)
	}
	if c.MergeGap < 0 {
		return fmt.Errorf("%w: merge gap must not be negative, got %d", ErrConfigurationInvalid, c.MergeGap)
	}
	if c.OffsetTolerance < 0 {
		return fmt.Errorf("%w: offset tolerance must not be negative, got %d", ErrConfigurationInvalid, c.OffsetTolerance)
	}
	if c.MinSpanTokens < 0 {
		return fmt.Errorf("%w: minimum span length must not be negative, got %d", ErrConfigurationInvalid, c.MinSpanTokens)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrConfigurationInvalid, c.Workers)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("%w: max file size must not be negative, got %d", ErrConfigurationInvalid, c.MaxFileSize)
	}
	if c.MaxOccurrences < 0 {
		return fmt.Errorf("%w: max occurrences must not be negative, got %d", ErrConfigurationInvalid, c.MaxOccurrences)
	}
	return nil
}

// ClusterConfig returns the subset of settings the Clusterer needs.
func (c Config) ClusterConfig() ClusterConfig {
	return ClusterConfig{
		Window:          c.Window,
		MergeGap:        c.MergeGap,
		OffsetTolerance: c.OffsetTolerance,
		MinSpanTokens:   c.EffectiveMinSpanTokens(),
	}
}
