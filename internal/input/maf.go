package input

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/deluair/alphagenome/internal/batch"
	"github.com/deluair/alphagenome/internal/variant"
)

// Standard MAF column names
const (
	ColChromosome            = "Chromosome"
	ColStartPosition         = "Start_Position"
	ColReferenceAllele       = "Reference_Allele"
	ColTumorSeqAllele2       = "Tumor_Seq_Allele2"
	ColHugoSymbol            = "Hugo_Symbol"
	ColTumorSampleBarcode    = "Tumor_Sample_Barcode"
	ColVariantClassification = "Variant_Classification"
	ColHGVSpShort            = "HGVSp_Short"
	ColNCBIBuild             = "NCBI_Build"
)

// mafMetadata maps optional MAF columns to the metadata keys they are
// carried under.
var mafMetadata = map[string]string{
	ColHugoSymbol:            "hugo_symbol",
	ColTumorSampleBarcode:    "tumor_sample_barcode",
	ColVariantClassification: "variant_classification",
	ColHGVSpShort:            "hgvsp_short",
	ColNCBIBuild:             "ncbi_build",
}

// MAFReader reads variants from a MAF (Mutation Annotation Format) stream.
// Each data line yields one input; the "-" allele convention becomes an
// empty allele.
type MAFReader struct {
	reader   *bufio.Reader
	file     *os.File
	gz       *gzip.Reader
	line     int
	header   string
	required [4]int         // chromosome, start, ref, alt
	optional map[int]string // column index -> metadata key
}

// OpenMAF opens a plain or gzipped MAF file. "-" reads standard input.
func OpenMAF(path string) (*MAFReader, error) {
	if path == "-" {
		return NewMAFReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}
	r, err := NewMAFReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewMAFReader reads MAF from r, detecting gzip compression by its magic
// bytes.
func NewMAFReader(r io.Reader) (*MAFReader, error) {
	mr := &MAFReader{}
	br := bufio.NewReader(r)

	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		mr.gz, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		br = bufio.NewReader(mr.gz)
	}
	mr.reader = br

	if err := mr.readHeader(); err != nil {
		mr.Close()
		return nil, err
	}
	return mr, nil
}

// readHeader skips "#" comment lines and indexes the column header.
func (r *MAFReader) readHeader() error {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{Format: FormatMAF, Line: r.line, Message: "no header line found"}
			}
			return fmt.Errorf("read header: %w", err)
		}
		r.line++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r.header = line
		return r.indexColumns(line)
	}
}

func (r *MAFReader) indexColumns(header string) error {
	r.required = [4]int{-1, -1, -1, -1}
	r.optional = make(map[int]string)

	for i, col := range strings.Split(header, "\t") {
		switch col {
		case ColChromosome:
			r.required[0] = i
		case ColStartPosition:
			r.required[1] = i
		case ColReferenceAllele:
			r.required[2] = i
		case ColTumorSeqAllele2:
			r.required[3] = i
		default:
			if key, ok := mafMetadata[col]; ok {
				r.optional[i] = key
			}
		}
	}

	names := [4]string{ColChromosome, ColStartPosition, ColReferenceAllele, ColTumorSeqAllele2}
	for i, idx := range r.required {
		if idx == -1 {
			return &ParseError{
				Format:  FormatMAF,
				Line:    r.line,
				Message: fmt.Sprintf("required column '%s' not found in header", names[i]),
			}
		}
	}
	return nil
}

// Next returns the input for the next data line.
// Returns nil, nil when there are no more variants.
func (r *MAFReader) Next() (*batch.Input, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		r.line++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return r.parseLine(line)
	}
}

// ReadAll returns every input in the stream.
func (r *MAFReader) ReadAll() ([]batch.Input, error) {
	var out []batch.Input
	for {
		in, err := r.Next()
		if err != nil {
			return nil, err
		}
		if in == nil {
			return out, nil
		}
		out = append(out, *in)
	}
}

func (r *MAFReader) parseLine(line string) (*batch.Input, error) {
	fields := strings.Split(line, "\t")

	minCols := max(r.required[0], r.required[1], r.required[2], r.required[3])
	if len(fields) <= minCols {
		return nil, &ParseError{
			Format:  FormatMAF,
			Line:    r.line,
			Message: fmt.Sprintf("expected at least %d columns, found %d", minCols+1, len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[r.required[1]], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Format:  FormatMAF,
			Line:    r.line,
			Message: fmt.Sprintf("invalid position: %s", fields[r.required[1]]),
		}
	}

	ref := mafAllele(fields[r.required[2]])
	alt := mafAllele(fields[r.required[3]])

	meta := make(map[string]any)
	for idx, key := range r.optional {
		if idx < len(fields) && fields[idx] != "" {
			meta[key] = fields[idx]
		}
	}

	return &batch.Input{
		Variant: variant.Variant{
			Chrom: NormalizeChrom(fields[r.required[0]]),
			Pos:   pos,
			Ref:   ref,
			Alt:   alt,
		},
		Metadata: meta,
	}, nil
}

// mafAllele maps the MAF "-" placeholder to an empty allele.
func mafAllele(s string) string {
	if s == "-" {
		return ""
	}
	return strings.ToUpper(s)
}

// Header returns the MAF column header line.
func (r *MAFReader) Header() string {
	return r.header
}

// Close closes the underlying file.
func (r *MAFReader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
