package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/cda/internal/output"
	"github.com/panbanda/cda/pkg/analyzer/duplicates"
)

// Renderer builds printable reports from analyses.
type Renderer struct {
	p     *message.Printer
	title cases.Caser
}

// NewRenderer creates a renderer using English number formatting.
func NewRenderer() *Renderer {
	return &Renderer{
		p:     message.NewPrinter(language.English),
		title: cases.Title(language.English),
	}
}

func (r *Renderer) num(n int) string {
	return r.p.Sprintf("%d", n)
}

func (r *Renderer) percent(rate float64) string {
	return r.p.Sprintf("%.2f%%", rate*100)
}

func lineRange(path string, start, end int) string {
	return fmt.Sprintf("%s:%d-%d", path, start, end)
}

// Build returns the report for a.
func (r *Renderer) Build(a *duplicates.Analysis) output.Renderable {
	data := NewData(a)
	if empty(a) {
		return &output.Section{Content: NoDuplicatesMessage, Data: data}
	}

	return &output.Report{
		Title: "Code duplication",
		Sections: []output.Renderable{
			r.pairsTable(data),
			&totals{r: r, summary: a.Summary},
			r.spansTable(a.Spans),
			r.summarySection(a),
		},
		Data: data,
	}
}

func (r *Renderer) pairsTable(d *Data) *output.Table {
	rows := make([][]string, 0, len(d.Pairs))
	for _, p := range d.Pairs {
		rows = append(rows, []string{
			p.NewFile,
			p.OldFile,
			r.num(p.NewLines),
			r.percent(p.SelfRate),
			r.num(p.DuplicatedLines),
			r.percent(p.DestinationRate),
		})
	}
	return output.NewTable(
		fmt.Sprintf("Found %s results:", r.num(len(d.Pairs))),
		[]string{"New file", "Old file", "Lines", "Self rate", "Duplicated lines", "Destination rate"},
		rows, nil, d.Pairs,
	)
}

func (r *Renderer) spansTable(spans []duplicates.DuplicateSpan) *output.Table {
	rows := make([][]string, 0, len(spans))
	for _, s := range spans {
		rows = append(rows, []string{
			lineRange(s.NewFile, s.NewStartLine, s.NewEndLine),
			lineRange(s.OldFile, s.OldStartLine, s.OldEndLine),
			r.num(s.Tokens),
			r.percent(s.Similarity),
		})
	}
	return output.NewTable("Spans", []string{"New", "Old", "Tokens", "Similarity"}, rows, nil, spans)
}

func (r *Renderer) summarySection(a *duplicates.Analysis) *output.Section {
	s := a.Summary
	var b strings.Builder
	for _, side := range []duplicates.Side{duplicates.SideNew, duplicates.SideOld} {
		files, tokens, lines := s.NewFiles, s.NewTokens, s.NewLines
		if side == duplicates.SideOld {
			files, tokens, lines = s.OldFiles, s.OldTokens, s.OldLines
		}
		fmt.Fprintf(&b, "%s tree: %s files, %s tokens, %s lines\n",
			r.title.String(side.String()), r.num(files), r.num(tokens), r.num(lines))
	}
	fmt.Fprintf(&b, "Spans: %s in %s pairs\n", r.num(s.TotalSpans), r.num(s.TotalPairs))
	fmt.Fprintf(&b, "Similarity: avg %s, p50 %s, p95 %s",
		r.percent(s.AvgSimilarity), r.percent(s.P50Similarity), r.percent(s.P95Similarity))
	if s.SkippedFiles > 0 {
		fmt.Fprintf(&b, "\nSkipped: %s files", r.num(s.SkippedFiles))
	}
	if s.SuppressedOccurrences > 0 {
		fmt.Fprintf(&b, "\nRepetitive code: %s occurrences not compared", r.num(s.SuppressedOccurrences))
	}

	sec := &output.Section{Title: "Summary", Content: b.String(), Data: s}
	if len(s.Hotspots) > 0 {
		var hb strings.Builder
		for i, h := range s.Hotspots {
			if i > 0 {
				hb.WriteByte('\n')
			}
			fmt.Fprintf(&hb, "%s  %s lines, %s, %s pairs",
				h.File, r.num(h.DuplicatedLines), r.percent(h.Rate), r.num(h.PairCount))
		}
		sec.Sections = []output.Section{{Title: "Hotspots", Content: hb.String()}}
	}
	return sec
}

// totals prints the run-wide rates under the pairs table.
type totals struct {
	r       *Renderer
	summary duplicates.Summary
}

func (t *totals) RenderData() any {
	return map[string]float64{
		"total_rate":         t.summary.DestinationRate,
		"total_rate_of_self": t.summary.SelfRate,
	}
}

func (t *totals) RenderText(w io.Writer, colored bool) error {
	dest := t.r.percent(t.summary.DestinationRate)
	self := t.r.percent(t.summary.SelfRate)
	if colored {
		dest = output.RateColor(t.summary.DestinationRate, dest)
		self = output.RateColor(t.summary.SelfRate, self)
	}
	_, err := fmt.Fprintf(w, "Total rate: %s\nTotal rate of self: %s\n", dest, self)
	return err
}

func (t *totals) RenderMarkdown(w io.Writer) error {
	_, err := fmt.Fprintf(w, "**Total rate:** %s  \n**Total rate of self:** %s\n\n",
		t.r.percent(t.summary.DestinationRate), t.r.percent(t.summary.SelfRate))
	return err
}

// WriteFile writes the plain-text report to name, resolved against root
// unless it is absolute, and returns the path written.
func WriteFile(root, name string, rep output.Renderable) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, name)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := rep.RenderText(f, false); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
