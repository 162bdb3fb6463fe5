package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVariant_Valid(t *testing.T) {
	tests := []struct {
		name string
		v    Variant
	}{
		{"SNV", Variant{"chr1", 1000000, "A", "G"}},
		{"lowercase alleles", Variant{"chr17", 43106528, "g", "t"}},
		{"sex chromosome", Variant{"chrX", 1, "C", "T"}},
		{"mitochondrial", Variant{"chrM", 73, "A", "G"}},
		{"anchored deletion", Variant{"chr13", 32337515, "GATA", "G"}},
		{"unanchored deletion", Variant{"chr7", 117548628, "CTT", ""}},
		{"insertion", Variant{"chr2", 500, "A", "ACGT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.v.Validate())
		})
	}
}

func TestValidateVariant_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		v     Variant
		field string
	}{
		{"missing chr prefix", Variant{"1", 100, "A", "G"}, "chromosome"},
		{"unknown contig", Variant{"chrUn_gl000220", 100, "A", "G"}, "chromosome"},
		{"empty chromosome", Variant{"", 100, "A", "G"}, "chromosome"},
		{"zero position", Variant{"chr1", 0, "A", "G"}, "position"},
		{"negative position", Variant{"chr1", -5, "A", "G"}, "position"},
		{"empty ref", Variant{"chr1", 100, "", "G"}, "ref"},
		{"IUPAC ref", Variant{"chr1", 100, "N", "G"}, "ref"},
		{"symbolic alt", Variant{"chr1", 100, "A", "<DEL>"}, "alt"},
		{"spanning deletion alt", Variant{"chr1", 100, "A", "*"}, "alt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateVariant_ReasonNamesChromosome(t *testing.T) {
	err := ValidateVariant("chromosome1", 100, "A", "G")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromosome1")
}

func TestValidateInterval(t *testing.T) {
	tests := []struct {
		name    string
		iv      Interval
		wantErr bool
	}{
		{"valid", Interval{"chr1", 1, 2}, false},
		{"large", Interval{"chr17", 42606528, 43606528}, false},
		{"bad chromosome", Interval{"17", 1, 2}, true},
		{"zero start", Interval{"chr1", 0, 10}, true},
		{"end equals start", Interval{"chr1", 10, 10}, true},
		{"end before start", Interval{"chr1", 10, 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.iv.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCenteredInterval(t *testing.T) {
	tests := []struct {
		name      string
		pos, size int64
		start     int64
		end       int64
	}{
		{"centred", 43106528, 1000000, 42606528, 43606528},
		{"clamped at chromosome start", 1000, 1000000, 1, 501000},
		{"odd size", 100, 11, 95, 105},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := CenteredInterval(Variant{Chrom: "chr1", Pos: tt.pos, Ref: "A", Alt: "G"}, tt.size)
			assert.Equal(t, "chr1", iv.Chrom)
			assert.Equal(t, tt.start, iv.Start)
			assert.Equal(t, tt.end, iv.End)
		})
	}
}

func TestVariant_Kinds(t *testing.T) {
	tests := []struct {
		name                 string
		ref, alt             string
		snv, indel, ins, del bool
	}{
		{"SNV", "A", "G", true, false, false, false},
		{"anchored deletion", "AT", "A", false, true, false, true},
		{"unanchored deletion", "CTT", "", false, true, false, true},
		{"insertion", "A", "AT", false, true, true, false},
		{"MNV", "AT", "GC", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Variant{Chrom: "chr1", Pos: 1, Ref: tt.ref, Alt: tt.alt}
			assert.Equal(t, tt.snv, v.IsSNV(), "IsSNV")
			assert.Equal(t, tt.indel, v.IsIndel(), "IsIndel")
			assert.Equal(t, tt.ins, v.IsInsertion(), "IsInsertion")
			assert.Equal(t, tt.del, v.IsDeletion(), "IsDeletion")
		})
	}
}

func TestVariant_String(t *testing.T) {
	assert.Equal(t, "chr17:43106528:G>T", Variant{"chr17", 43106528, "G", "T"}.String())
	assert.Equal(t, "chr1:10-20", Interval{"chr1", 10, 20}.String())
}
