// Package output provides prediction result formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/track"
)

// TabWriter writes one tab-delimited line per (result, assay) pair.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Variant",
			"Location",
			"Ref",
			"Alt",
			"Assay",
			"Ref_mean",
			"Alt_mean",
			"Mean_diff",
			"Max_abs_diff",
			"Total_effect",
			"Correlation",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes every assay of a result. A result without predictions
// produces a single line with the assay columns set to "-".
func (tw *TabWriter) Write(r *analyzer.Result) error {
	id := "-"
	if v, ok := r.Metadata["id"].(string); ok && v != "" {
		id = v
	}
	location := r.Chromosome + ":" + strconv.FormatInt(r.Position, 10)
	alt := r.Alternate
	if alt == "" {
		alt = "-"
	}
	prefix := []string{id, location, r.Reference, alt}

	assays := r.Assays()
	if len(assays) == 0 {
		return tw.writeRow(append(prefix, "-", "-", "-", "-", "-", "-", "-"))
	}

	for _, assay := range assays {
		p := r.Predictions[assay]
		row := append(append([]string(nil), prefix...),
			assay,
			summaryMean(p.Reference),
			summaryMean(p.Alternate),
		)
		if d := p.Difference; d != nil {
			row = append(row,
				formatFloat(d.MeanDifference),
				formatFloat(d.MaxAbsoluteDifference),
				formatFloat(d.TotalAbsoluteEffect),
				formatFloat(d.Correlation),
			)
		} else {
			row = append(row, "-", "-", "-", "-")
		}
		if err := tw.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (tw *TabWriter) writeRow(values []string) error {
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// summaryMean formats the mean of a recognized summary; opaque tracks
// print as "opaque" and missing ones as "-".
func summaryMean(s *track.Summary) string {
	switch {
	case s == nil:
		return "-"
	case !s.Recognized():
		return "opaque"
	}
	return formatFloat(s.Mean)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
