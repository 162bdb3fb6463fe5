package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluair/alphagenome/internal/track"
	"github.com/deluair/alphagenome/internal/variant"
)

func testRequest() Request {
	v := variant.Variant{Chrom: "chr17", Pos: 43106528, Ref: "G", Alt: "T"}
	return Request{
		Interval:      variant.CenteredInterval(v, 1000),
		Variant:       v,
		OntologyTerms: []string{DefaultOntologyTerm},
		Outputs:       DefaultOutputs,
	}
}

func TestHTTPClient_PredictVariant(t *testing.T) {
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/predict_variant", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"reference": {"rna_seq": [1, 2, 3], "cage": {"values": [0.5, 0.5]}, "dnase": "unsupported"},
			"alternate": {"rna_seq": [2, 3, 5], "cage": {"data": [0.25, 1]}}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret", 0)
	resp, err := c.PredictVariant(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "chr17", got.Variant.Chromosome)
	assert.Equal(t, int64(43106528), got.Variant.Position)
	assert.Equal(t, "G", got.Variant.ReferenceBases)
	assert.Equal(t, "T", got.Variant.AlternateBases)
	assert.Equal(t, int64(43106028), got.Interval.Start)
	assert.Equal(t, int64(43107028), got.Interval.End)
	assert.Equal(t, []string{DefaultOntologyTerm}, got.OntologyTerms)
	assert.Equal(t, DefaultOutputs, got.RequestedOutputs)

	require.Len(t, resp.Reference, 3)
	assert.True(t, resp.Reference[AssayRNASeq].IsNumeric())
	assert.True(t, resp.Reference[AssayCAGE].IsNumeric())
	assert.False(t, resp.Reference[AssayDNase].IsNumeric())
	assert.Equal(t, `"unsupported"`, resp.Reference[AssayDNase].Repr())

	require.NotNil(t, resp.Alternate)
	assert.Equal(t, 2, resp.Alternate[AssayCAGE].Sequence().Len())
	_, ok := resp.Alternate[AssayDNase]
	assert.False(t, ok)
}

func TestHTTPClient_NoAlternate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reference": {"rna_seq": [1]}}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(srv.URL, "", 0).PredictVariant(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.Alternate)
}

func TestHTTPClient_StatusError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid API key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "bad", 0)
	c.SetMaxRetries(3)
	_, err := c.PredictVariant(context.Background(), testRequest())
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "invalid API key")
	assert.Equal(t, int32(1), calls.Load(), "non-retryable status must not be retried")
}

func TestHTTPClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", 0).PredictVariant(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"reference": {"rna_seq": [1, 2]}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 0)
	c.SetMaxRetries(5)
	resp, err := c.PredictVariant(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, resp.Reference[AssayRNASeq].Sequence().Len())
}

func TestHTTPClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", 0).PredictVariant(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode prediction response")
}

func TestDecodeTrack(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		absent  bool
		numeric bool
		length  int
	}{
		{"array", `[1, 2.5, -3]`, false, true, 3},
		{"empty array", `[]`, false, true, 0},
		{"matrix", `[[1, 2], [3, 4], [5, 6]]`, false, true, 6},
		{"values object", `{"values": [1, 2]}`, false, true, 2},
		{"data object", `{"data": [1]}`, false, true, 1},
		{"null", `null`, true, false, 0},
		{"string", `"abc"`, false, false, 0},
		{"object without values", `{"metadata": {"name": "x"}}`, false, false, 0},
		{"mixed array", `[1, "two"]`, false, false, 0},
		{"null element", `[1, null, 3]`, false, false, 0},
		{"null in matrix", `[[1, 2], [null, 4]]`, false, false, 0},
		{"null row", `[[1, 2], null]`, false, false, 0},
		{"null in values object", `{"values": [1, null]}`, false, false, 0},
		{"null in data object", `{"data": [null]}`, false, false, 0},
		{"matrix of empty rows", `[[], []]`, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DecodeTrack(json.RawMessage(tt.raw))
			assert.Equal(t, tt.absent, p.IsAbsent(), "IsAbsent")
			assert.Equal(t, tt.numeric, p.IsNumeric(), "IsNumeric")
			if tt.numeric {
				assert.Equal(t, tt.length, p.Sequence().Len())
			}
		})
	}
}

func TestDecodeTrack_MatrixRowMajor(t *testing.T) {
	p := DecodeTrack(json.RawMessage(`[[1, 2], [3, 4]]`))
	s := track.Summarize(p)
	require.NotNil(t, s)
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values)
}

func TestDecodeTrack_NullKeepsRawText(t *testing.T) {
	p := DecodeTrack(json.RawMessage(` [1, null, 3] `))
	assert.False(t, p.IsNumeric())
	assert.Equal(t, track.Opaque("[1, null, 3]"), p)
}
