// Package variant defines the variant and interval descriptors sent to the
// prediction backend, and the structural checks applied before any network use.
package variant

import "strconv"

// Variant is a single genomic variant.
type Variant struct {
	Chrom string // Chromosome name, always "chr"-prefixed (e.g. "chr17")
	Pos   int64  // 1-based genomic position
	Ref   string // Reference allele
	Alt   string // Alternate allele, empty for a pure deletion
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant removes reference bases. An empty
// alternate allele is the unanchored form of a deletion.
func (v Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// Validate checks the variant with ValidateVariant.
func (v Variant) Validate() error {
	return ValidateVariant(v.Chrom, v.Pos, v.Ref, v.Alt)
}

// String formats the variant as chrom:pos:ref>alt.
func (v Variant) String() string {
	return v.Chrom + ":" + strconv.FormatInt(v.Pos, 10) + ":" + v.Ref + ">" + v.Alt
}

// Interval is a half-open genomic window [Start, End) used as prediction context.
type Interval struct {
	Chrom string
	Start int64
	End   int64
}

// Validate checks the interval with ValidateInterval.
func (iv Interval) Validate() error {
	return ValidateInterval(iv.Chrom, iv.Start, iv.End)
}

// Width returns the number of bases covered by the interval.
func (iv Interval) Width() int64 {
	return iv.End - iv.Start
}

// String formats the interval as chrom:start-end.
func (iv Interval) String() string {
	return iv.Chrom + ":" + strconv.FormatInt(iv.Start, 10) + "-" + strconv.FormatInt(iv.End, 10)
}

// CenteredInterval returns a window of the given size centred on the variant.
// The start is clamped to 1.
func CenteredInterval(v Variant, size int64) Interval {
	half := size / 2
	return Interval{
		Chrom: v.Chrom,
		Start: max(1, v.Pos-half),
		End:   v.Pos + half,
	}
}
