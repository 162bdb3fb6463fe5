// Package backend defines the boundary to the remote variant prediction
// service and an HTTP/JSON client for it.
package backend

import (
	"context"

	"github.com/deluair/alphagenome/internal/track"
	"github.com/deluair/alphagenome/internal/variant"
)

// OutputType names a class of predicted signal track.
type OutputType string

// Output types understood by the backend.
const (
	OutputRNASeq OutputType = "RNA_SEQ"
	OutputCAGE   OutputType = "CAGE"
	OutputDNase  OutputType = "DNASE"
	OutputATAC   OutputType = "ATAC"
)

// Assay names as they appear in responses.
const (
	AssayRNASeq = "rna_seq"
	AssayCAGE   = "cage"
	AssayDNase  = "dnase"
)

// KnownAssays lists the assays that are summarized, in output order.
var KnownAssays = []string{AssayRNASeq, AssayCAGE, AssayDNase}

// DefaultOutputs are requested when the caller does not choose any.
var DefaultOutputs = []OutputType{OutputRNASeq, OutputCAGE, OutputDNase}

// DefaultOntologyTerm is the broad anatomical-system term used when the
// caller supplies no ontology context.
const DefaultOntologyTerm = "UBERON:0001157"

// Request is a single variant prediction call.
type Request struct {
	Interval      variant.Interval
	Variant       variant.Variant
	OntologyTerms []string
	Outputs       []OutputType
}

// Response holds per-assay tracks for the reference and alternate sequence.
// Alternate is nil when the backend predicted no variant.
type Response struct {
	Reference map[string]track.Payload
	Alternate map[string]track.Payload
}

// Predictor is the prediction backend. Errors are opaque to callers and are
// never retried by the orchestration layer.
type Predictor interface {
	PredictVariant(ctx context.Context, req Request) (*Response, error)
}
