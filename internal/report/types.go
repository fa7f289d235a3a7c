// Package report turns a duplicate analysis into the tables and rates cda prints.
package report

import (
	"cmp"
	"slices"

	"github.com/panbanda/cda/pkg/analyzer/duplicates"
)

// NoDuplicatesMessage is printed when a run finds nothing.
const NoDuplicatesMessage = "Everything is fine, no code duplications found."

// PairRow is one line of the pairs table.
type PairRow struct {
	NewFile         string  `json:"new_file" toon:"new_file"`
	OldFile         string  `json:"old_file" toon:"old_file"`
	NewLines        int     `json:"new_lines" toon:"new_lines"`
	SelfRate        float64 `json:"self_rate" toon:"self_rate"`
	DuplicatedLines int     `json:"duplicated_lines" toon:"duplicated_lines"`
	DestinationRate float64 `json:"destination_rate" toon:"destination_rate"`
	Spans           int     `json:"spans" toon:"spans"`
}

// Data is the structured form of a report, used for json, toon and yaml.
type Data struct {
	Message     string                     `json:"message,omitempty" toon:"message,omitempty"`
	Summary     duplicates.Summary         `json:"summary" toon:"summary"`
	Pairs       []PairRow                  `json:"pairs" toon:"pairs"`
	Spans       []duplicates.DuplicateSpan `json:"spans" toon:"spans"`
	Diagnostics []Diagnostic               `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
	Config      ConfigRow                  `json:"config" toon:"config"`
}

// ConfigRow is the detector configuration with every value as a plain type,
// so all structured encoders accept it.
type ConfigRow struct {
	Normalization   string `json:"normalization" toon:"normalization"`
	Window          int    `json:"window" toon:"window"`
	Guarantee       int    `json:"guarantee" toon:"guarantee"`
	MergeGap        int    `json:"merge_gap" toon:"merge_gap"`
	OffsetTolerance int    `json:"offset_tolerance" toon:"offset_tolerance"`
	MinSpanTokens   int    `json:"min_span_tokens" toon:"min_span_tokens"`
	MaxOccurrences  int    `json:"max_occurrences" toon:"max_occurrences"`
	Language        string `json:"language,omitempty" toon:"language,omitempty"`
	MaxFileSize     int64  `json:"max_file_size,omitempty" toon:"max_file_size,omitempty"`
}

func configRow(c duplicates.Config) ConfigRow {
	return ConfigRow{
		Normalization:   c.Normalization.String(),
		Window:          c.Window,
		Guarantee:       c.Guarantee,
		MergeGap:        c.MergeGap,
		OffsetTolerance: c.OffsetTolerance,
		MinSpanTokens:   c.EffectiveMinSpanTokens(),
		MaxOccurrences:  c.EffectiveMaxOccurrences(),
		Language:        string(c.Language),
		MaxFileSize:     c.MaxFileSize,
	}
}

// Diagnostic is a per-file problem that did not stop the run.
type Diagnostic struct {
	Path  string `json:"path" toon:"path"`
	Error string `json:"error" toon:"error"`
}

// Rows builds the pairs table rows, ordered by self-rate descending and then
// by file names.
func Rows(a *duplicates.Analysis) []PairRow {
	lines := make(map[string]int, len(a.Files))
	for _, f := range a.Files {
		if f.Side == duplicates.SideNew {
			lines[f.Path] = f.Lines
		}
	}

	rows := make([]PairRow, 0, len(a.Pairs))
	for _, p := range a.Pairs {
		rows = append(rows, PairRow{
			NewFile:         p.NewFile,
			OldFile:         p.OldFile,
			NewLines:        lines[p.NewFile],
			SelfRate:        p.NewCoverage,
			DuplicatedLines: p.DuplicatedLines,
			DestinationRate: p.OldCoverage,
			Spans:           len(p.Spans),
		})
	}
	slices.SortStableFunc(rows, func(x, y PairRow) int {
		return cmp.Or(
			cmp.Compare(y.SelfRate, x.SelfRate),
			cmp.Compare(x.NewFile, y.NewFile),
			cmp.Compare(x.OldFile, y.OldFile),
		)
	})
	return rows
}

// empty reports whether a found nothing. Spans may have been cut to fit
// a budget while pairs remain.
func empty(a *duplicates.Analysis) bool {
	return len(a.Pairs) == 0 && !a.HasDuplicates()
}

// NewData assembles the structured report.
func NewData(a *duplicates.Analysis) *Data {
	d := &Data{
		Summary: a.Summary,
		Pairs:   Rows(a),
		Spans:   a.Spans,
		Config:  configRow(a.Config),
	}
	if d.Spans == nil {
		d.Spans = []duplicates.DuplicateSpan{}
	}
	if empty(a) {
		d.Message = NoDuplicatesMessage
	}
	for _, e := range a.Diagnostics {
		d.Diagnostics = append(d.Diagnostics, Diagnostic{Path: e.Path, Error: e.Err.Error()})
	}
	return d
}
