package track

import "math"

// Kind distinguishes summaries computed from numbers from string captures.
type Kind string

const (
	KindRecognized Kind = "recognized"
	KindOpaque     Kind = "opaque"
)

// Summary holds statistics for one track.
type Summary struct {
	Kind   Kind      `json:"kind"`
	Values []float64 `json:"values,omitempty"`
	Length int       `json:"length"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"` // population standard deviation
	Max    float64   `json:"max"`
	Min    float64   `json:"min"`
	Raw    string    `json:"raw,omitempty"`
}

// Recognized reports whether the summary was computed from numeric values.
func (s *Summary) Recognized() bool {
	return s != nil && s.Kind == KindRecognized
}

// Delta compares an alternate track against its reference.
type Delta struct {
	Values                []float64 `json:"values,omitempty"`
	MeanDifference        float64   `json:"mean_difference"`
	MaxAbsoluteDifference float64   `json:"max_absolute_difference"`
	TotalAbsoluteEffect   float64   `json:"total_absolute_effect"`
	Correlation           float64   `json:"correlation"`
}

// Summarize computes statistics over a payload. It returns nil for an absent
// payload and an opaque summary when the payload is not numeric. An empty
// numeric sequence yields a recognized summary with zero statistics.
func Summarize(p Payload) *Summary {
	if p.IsAbsent() {
		return nil
	}
	if !p.IsNumeric() {
		return &Summary{Kind: KindOpaque, Raw: p.Repr()}
	}

	seq := p.Sequence()
	n := seq.Len()
	vals := make([]float64, n)
	for i := range n {
		vals[i] = seq.At(i)
	}

	s := &Summary{Kind: KindRecognized, Values: vals, Length: n}
	if n == 0 {
		return s
	}

	s.Min, s.Max = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(n)

	var sq float64
	for _, v := range vals {
		d := v - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / float64(n))
	return s
}

// Compare summarizes both payloads and computes the elementwise difference
// alt − ref. It returns nil when either side is absent or opaque, or when the
// track lengths differ.
func Compare(ref, alt Payload) *Delta {
	return CompareSummaries(Summarize(ref), Summarize(alt))
}

// CompareSummaries is Compare for already summarized tracks.
func CompareSummaries(ref, alt *Summary) *Delta {
	if !ref.Recognized() || !alt.Recognized() {
		return nil
	}
	if ref.Length != alt.Length {
		return nil
	}

	n := ref.Length
	d := &Delta{Values: make([]float64, n)}
	var sum float64
	for i := range n {
		diff := alt.Values[i] - ref.Values[i]
		d.Values[i] = diff
		sum += diff
		abs := math.Abs(diff)
		d.TotalAbsoluteEffect += abs
		d.MaxAbsoluteDifference = math.Max(d.MaxAbsoluteDifference, abs)
	}
	if n > 0 {
		d.MeanDifference = sum / float64(n)
	}
	d.Correlation = Pearson(ref.Values, alt.Values)
	return d
}

// Pearson returns the Pearson correlation of two equal-length sequences.
// It returns 0 when the correlation is undefined: fewer than two points or
// zero variance on either side.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}

	var mx, my float64
	for i := range n {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := range n {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	r := sxy / math.Sqrt(sxx*syy)
	// Clamp rounding noise.
	return math.Max(-1, math.Min(1, r))
}
