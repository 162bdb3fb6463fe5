package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deluair/alphagenome/internal/batch"
)

// Format identifies an input file format.
type Format string

const (
	FormatVCF  Format = "vcf"
	FormatMAF  Format = "maf"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat infers the format from the file name. Standard input ("-")
// is read as VCF.
func DetectFormat(path string) (Format, error) {
	if path == "-" {
		return FormatVCF, nil
	}
	base := strings.ToLower(filepath.Base(path))
	name := strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".bgz")
	compressed := name != base

	// cBioPortal MAF file names
	if name == "data_mutations.txt" || name == "data_mutations_extended.txt" {
		return FormatMAF, nil
	}
	switch filepath.Ext(name) {
	case ".vcf":
		return FormatVCF, nil
	case ".maf":
		return FormatMAF, nil
	case ".json":
		if !compressed {
			return FormatJSON, nil
		}
	case ".yaml", ".yml":
		if !compressed {
			return FormatYAML, nil
		}
	}
	return "", fmt.Errorf("unrecognized input format: %s (expected .vcf, .maf, .json, .yaml or .yml; only VCF and MAF may be gzipped)", path)
}

// Load reads every variant from path.
func Load(path string) ([]batch.Input, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatVCF:
		r, err := OpenVCF(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return r.ReadAll()
	case FormatMAF:
		r, err := OpenMAF(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return r.ReadAll()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant list: %w", err)
	}
	defer f.Close()

	if format == FormatJSON {
		return ReadJSON(f)
	}
	return ReadYAML(f)
}

// ParseError represents an error during input parsing with line context.
type ParseError struct {
	Format  Format
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parse error at line %d: %s", e.Format, e.Line, e.Message)
}
