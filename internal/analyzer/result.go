package analyzer

import (
	"time"

	"github.com/deluair/alphagenome/internal/backend"
	"github.com/deluair/alphagenome/internal/track"
	"github.com/deluair/alphagenome/internal/variant"
)

// AssayPrediction holds the summarized tracks for one assay. Alternate and
// Difference are nil when the backend returned no alternate track or the
// tracks could not be compared.
type AssayPrediction struct {
	Reference  *track.Summary `json:"reference"`
	Alternate  *track.Summary `json:"alternate"`
	Difference *track.Delta   `json:"difference"`
}

// Result is the normalized prediction for one variant. A Result is not
// modified after it is returned; cached results are shared between callers.
type Result struct {
	Chromosome  string                     `json:"chromosome"`
	Position    int64                      `json:"position"`
	Reference   string                     `json:"reference"`
	Alternate   string                     `json:"alternate"`
	Predictions map[string]AssayPrediction `json:"predictions"`
	Metadata    map[string]any             `json:"metadata"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// Variant returns the variant the result was computed for.
func (r *Result) Variant() variant.Variant {
	return variant.Variant{Chrom: r.Chromosome, Pos: r.Position, Ref: r.Reference, Alt: r.Alternate}
}

// Assays returns the assay names present in the result in canonical order,
// followed by any others in the order they are found.
func (r *Result) Assays() []string {
	out := make([]string, 0, len(r.Predictions))
	seen := make(map[string]bool, len(r.Predictions))
	for _, a := range backend.KnownAssays {
		if _, ok := r.Predictions[a]; ok {
			out = append(out, a)
			seen[a] = true
		}
	}
	for a := range r.Predictions {
		if !seen[a] {
			out = append(out, a)
		}
	}
	return out
}

// approxSize estimates the in-memory footprint of a result in bytes.
func (r *Result) approxSize() int64 {
	size := int64(64 + len(r.Chromosome) + len(r.Reference) + len(r.Alternate))
	for name, p := range r.Predictions {
		size += int64(len(name)) + 24
		for _, s := range []*track.Summary{p.Reference, p.Alternate} {
			if s != nil {
				size += 48 + 8*int64(len(s.Values)) + int64(len(s.Raw))
			}
		}
		if p.Difference != nil {
			size += 32 + 8*int64(len(p.Difference.Values))
		}
	}
	for k := range r.Metadata {
		size += int64(len(k)) + 16
	}
	return size
}
