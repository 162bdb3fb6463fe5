package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/track"
)

// WriteJSON writes results as a single indented JSON array. Missing
// alternate tracks and differences are encoded as null.
func WriteJSON(w io.Writer, results []*analyzer.Result) error {
	if results == nil {
		results = []*analyzer.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

// Compact returns copies of the results without per-position track and
// difference values, keeping only the summary statistics.
func Compact(results []*analyzer.Result) []*analyzer.Result {
	out := make([]*analyzer.Result, len(results))
	for i, r := range results {
		c := *r
		c.Predictions = make(map[string]analyzer.AssayPrediction, len(r.Predictions))
		for assay, p := range r.Predictions {
			c.Predictions[assay] = analyzer.AssayPrediction{
				Reference:  stripSummary(p.Reference),
				Alternate:  stripSummary(p.Alternate),
				Difference: stripDelta(p.Difference),
			}
		}
		c.Metadata = maps.Clone(r.Metadata)
		out[i] = &c
	}
	return out
}

func stripSummary(s *track.Summary) *track.Summary {
	if s == nil {
		return nil
	}
	c := *s
	c.Values = nil
	return &c
}

func stripDelta(d *track.Delta) *track.Delta {
	if d == nil {
		return nil
	}
	c := *d
	c.Values = nil
	return &c
}
