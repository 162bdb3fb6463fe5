// Package input reads variant lists for batch prediction from VCF, JSON and
// YAML files.
package input

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/deluair/alphagenome/internal/batch"
	"github.com/deluair/alphagenome/internal/variant"
)

// VCFReader reads variants from a VCF stream. Multi-allelic records are
// split into one input per alternate allele.
type VCFReader struct {
	reader  *bufio.Reader
	file    *os.File
	gz      *gzip.Reader
	line    int
	header  []string
	skipped int
}

// OpenVCF opens a plain or gzipped VCF file. "-" reads standard input.
func OpenVCF(path string) (*VCFReader, error) {
	if path == "-" {
		return NewVCFReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	r, err := newVCFReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewVCFReader reads VCF from r, detecting gzip compression by its magic
// bytes.
func NewVCFReader(r io.Reader) (*VCFReader, error) {
	return newVCFReader(r)
}

func newVCFReader(r io.Reader) (*VCFReader, error) {
	vr := &VCFReader{}
	br := bufio.NewReader(r)

	// Check for gzip magic number (0x1f, 0x8b)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		vr.gz, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		br = bufio.NewReader(vr.gz)
	}
	vr.reader = br

	if err := vr.readHeader(); err != nil {
		vr.Close()
		return nil, err
	}
	return vr, nil
}

func (r *VCFReader) readHeader() error {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{Format: FormatVCF, Line: r.line, Message: "no #CHROM header line found"}
			}
			return fmt.Errorf("read header: %w", err)
		}
		r.line++
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "##"):
			r.header = append(r.header, line)
		case strings.HasPrefix(line, "#CHROM"):
			r.header = append(r.header, line)
			return nil
		default:
			return &ParseError{Format: FormatVCF, Line: r.line, Message: "expected #CHROM header line"}
		}
	}
}

// Next returns the inputs for the next VCF record. Records whose alternate
// alleles are all symbolic or missing yield an empty, non-nil slice.
// Returns nil, nil when there are no more records.
func (r *VCFReader) Next() ([]batch.Input, error) {
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
		if line == "" {
			continue
		}
		return r.parseRecord(line)
	}
}

// ReadAll returns every input in the stream.
func (r *VCFReader) ReadAll() ([]batch.Input, error) {
	var out []batch.Input
	for {
		inputs, err := r.Next()
		if err != nil {
			return nil, err
		}
		if inputs == nil {
			return out, nil
		}
		out = append(out, inputs...)
	}
}

func (r *VCFReader) parseRecord(line string) ([]batch.Input, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Format:  FormatVCF,
			Line:    r.line,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{Format: FormatVCF, Line: r.line, Message: fmt.Sprintf("invalid position: %s", fields[1])}
	}

	meta := map[string]any{}
	if id := fields[2]; id != "." {
		meta["id"] = id
	}
	if qual := fields[5]; qual != "." {
		if q, err := strconv.ParseFloat(qual, 64); err == nil {
			meta["qual"] = q
		}
	}
	if filter := fields[6]; filter != "." {
		meta["filter"] = filter
	}

	chrom := NormalizeChrom(fields[0])
	ref := strings.ToUpper(fields[3])
	out := []batch.Input{}
	for _, alt := range strings.Split(fields[4], ",") {
		if isSymbolic(alt) {
			r.skipped++
			continue
		}
		in := batch.Input{
			Variant:  variant.Variant{Chrom: chrom, Pos: pos, Ref: ref, Alt: strings.ToUpper(alt)},
			Metadata: make(map[string]any, len(meta)),
		}
		maps.Copy(in.Metadata, meta)
		out = append(out, in)
	}
	return out, nil
}

// isSymbolic reports whether an ALT allele cannot be expressed as bases:
// missing (.), spanning deletion (*), symbolic (<DEL>) or a breakend.
func isSymbolic(alt string) bool {
	if alt == "." || alt == "*" || alt == "" {
		return true
	}
	return strings.HasPrefix(alt, "<") || strings.ContainsAny(alt, "[]")
}

// NormalizeChrom adds the "chr" prefix used by the prediction service and
// maps the mitochondrial contig MT to chrM.
func NormalizeChrom(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom
	}
	if chrom == "MT" || chrom == "M" {
		return "chrM"
	}
	return "chr" + chrom
}

// Header returns the VCF header lines.
func (r *VCFReader) Header() []string {
	return r.header
}

// Skipped returns the number of symbolic or missing alleles skipped so far.
func (r *VCFReader) Skipped() int {
	return r.skipped
}

// Close closes the underlying file.
func (r *VCFReader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
