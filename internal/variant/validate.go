package variant

import (
	"fmt"
	"regexp"
)

var chromPattern = regexp.MustCompile(`^chr[0-9XYM]+$`)

// ValidationError describes a malformed variant or interval descriptor.
type ValidationError struct {
	Field  string // "chromosome", "position", "ref", "alt", "start", "end"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ValidateVariant checks that a variant is structurally well formed.
// It returns nil for a valid variant and a *ValidationError otherwise.
// An empty alternate allele is accepted and denotes a deletion; the
// reference allele must not be empty.
func ValidateVariant(chrom string, pos int64, ref, alt string) error {
	if err := validateChrom(chrom); err != nil {
		return err
	}
	if pos <= 0 {
		return &ValidationError{
			Field:  "position",
			Value:  fmt.Sprint(pos),
			Reason: fmt.Sprintf("position must be positive: %d", pos),
		}
	}
	if ref == "" || !isBases(ref) {
		return &ValidationError{
			Field:  "ref",
			Value:  ref,
			Reason: fmt.Sprintf("invalid reference allele: %q", ref),
		}
	}
	if !isBases(alt) {
		return &ValidationError{
			Field:  "alt",
			Value:  alt,
			Reason: fmt.Sprintf("invalid alternate allele: %q", alt),
		}
	}
	return nil
}

// ValidateInterval checks that a genomic interval is well formed.
func ValidateInterval(chrom string, start, end int64) error {
	if err := validateChrom(chrom); err != nil {
		return err
	}
	if start <= 0 {
		return &ValidationError{
			Field:  "start",
			Value:  fmt.Sprint(start),
			Reason: fmt.Sprintf("start position must be positive: %d", start),
		}
	}
	if end <= start {
		return &ValidationError{
			Field:  "end",
			Value:  fmt.Sprint(end),
			Reason: fmt.Sprintf("end position must be greater than start: %d <= %d", end, start),
		}
	}
	return nil
}

func validateChrom(chrom string) error {
	if !chromPattern.MatchString(chrom) {
		return &ValidationError{
			Field:  "chromosome",
			Value:  chrom,
			Reason: fmt.Sprintf("invalid chromosome format: %s", chrom),
		}
	}
	return nil
}

// isBases reports whether s consists only of A, C, G and T in either case.
func isBases(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		default:
			return false
		}
	}
	return true
}
