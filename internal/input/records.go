package input

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/batch"
	"github.com/deluair/alphagenome/internal/variant"
)

// Record is one entry of a JSON or YAML variant list. Keys that are not
// recognized are kept as metadata.
type Record struct {
	Chromosome    string         `mapstructure:"chromosome"`
	Position      int64          `mapstructure:"position"`
	Ref           string         `mapstructure:"ref"`
	Alt           string         `mapstructure:"alt"`
	Start         int64          `mapstructure:"start"`
	End           int64          `mapstructure:"end"`
	OntologyTerms []string       `mapstructure:"ontology_terms"`
	Metadata      map[string]any `mapstructure:"metadata"`
	Extra         map[string]any `mapstructure:",remain"`
}

// Input converts the record to a batch input. An interval is attached only
// when both start and end are set.
func (r Record) Input() batch.Input {
	in := batch.Input{
		Variant:       variant.Variant{Chrom: r.Chromosome, Pos: r.Position, Ref: r.Ref, Alt: r.Alt},
		OntologyTerms: r.OntologyTerms,
		Metadata:      make(map[string]any, len(r.Extra)+len(r.Metadata)),
	}
	if r.Start != 0 || r.End != 0 {
		in.Interval = &variant.Interval{Chrom: r.Chromosome, Start: r.Start, End: r.End}
	}
	maps.Copy(in.Metadata, r.Extra)
	maps.Copy(in.Metadata, r.Metadata)
	in.Metadata = analyzer.NormalizeMetadata(in.Metadata)
	return in
}

// ReadJSON reads a variant list from JSON. The document is either an array
// of records or an object with a "variants" array.
func ReadJSON(r io.Reader) ([]batch.Input, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json variant list: %w", err)
	}
	return decodeRecords(doc)
}

// ReadYAML reads a variant list from YAML, in the same shapes as ReadJSON.
func ReadYAML(r io.Reader) ([]batch.Input, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml variant list: %w", err)
	}
	return decodeRecords(doc)
}

func decodeRecords(doc any) ([]batch.Input, error) {
	if obj, ok := doc.(map[string]any); ok {
		list, found := obj["variants"]
		if !found {
			return nil, fmt.Errorf("variant list: expected an array or an object with a \"variants\" key")
		}
		doc = list
	}
	if doc == nil {
		return nil, nil
	}

	var records []Record
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &records,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create record decoder: %w", err)
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode variant records: %w", err)
	}

	inputs := make([]batch.Input, len(records))
	for i, rec := range records {
		inputs[i] = rec.Input()
	}
	return inputs, nil
}
