package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/deluair/alphagenome/internal/track"
)

// DefaultBaseURL is the prediction service endpoint used when none is configured.
const DefaultBaseURL = "https://api.alphagenome.example.com"

// StatusError is returned when the service answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("prediction API error %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// HTTPClient calls the prediction service over HTTP with JSON bodies.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	logger     *zap.Logger
}

// NewHTTPClient creates a client for the service at baseURL. A zero timeout
// leaves requests bounded only by the caller's context.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.NewNop(),
	}
}

// SetMaxRetries enables transport-level retries with exponential backoff for
// connection failures and 429/502/503/504 responses. Zero disables retries.
func (c *HTTPClient) SetMaxRetries(n int) {
	c.maxRetries = uint64(max(n, 0))
}

// SetLogger sets the logger for retry messages.
func (c *HTTPClient) SetLogger(l *zap.Logger) {
	c.logger = l
}

type wireInterval struct {
	Chromosome string `json:"chromosome"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
}

type wireVariant struct {
	Chromosome     string `json:"chromosome"`
	Position       int64  `json:"position"`
	ReferenceBases string `json:"reference_bases"`
	AlternateBases string `json:"alternate_bases"`
}

type wireRequest struct {
	Interval         wireInterval `json:"interval"`
	Variant          wireVariant  `json:"variant"`
	OntologyTerms    []string     `json:"ontology_terms"`
	RequestedOutputs []OutputType `json:"requested_outputs"`
}

type wireResponse struct {
	Reference map[string]json.RawMessage `json:"reference"`
	Alternate map[string]json.RawMessage `json:"alternate"`
}

// PredictVariant posts the request to {baseURL}/v1/predict_variant.
func (c *HTTPClient) PredictVariant(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(wireRequest{
		Interval: wireInterval{
			Chromosome: req.Interval.Chrom,
			Start:      req.Interval.Start,
			End:        req.Interval.End,
		},
		Variant: wireVariant{
			Chromosome:     req.Variant.Chrom,
			Position:       req.Variant.Pos,
			ReferenceBases: req.Variant.Ref,
			AlternateBases: req.Variant.Alt,
		},
		OntologyTerms:    req.OntologyTerms,
		RequestedOutputs: req.Outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var wire wireResponse
	attempt := 0
	op := func() error {
		attempt++
		err := c.post(ctx, body, &wire)
		if err == nil {
			return nil
		}
		var se *StatusError
		var de *decodeError
		if ctx.Err() != nil || (errors.As(err, &se) && !se.Retryable()) || errors.As(err, &de) {
			return backoff.Permanent(err)
		}
		if attempt <= int(c.maxRetries) {
			c.logger.Warn("retrying prediction request",
				zap.Int("attempt", attempt),
				zap.String("variant", req.Variant.String()),
				zap.Error(err))
		}
		return err
	}

	if c.maxRetries == 0 {
		err = c.post(ctx, body, &wire)
	} else {
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
		err = backoff.Retry(op, b)
	}
	if err != nil {
		return nil, err
	}

	return wire.toResponse(), nil
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode prediction response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *HTTPClient) post(ctx context.Context, body []byte, out *wireResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict_variant", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("prediction API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	*out = wireResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func (w wireResponse) toResponse() *Response {
	resp := &Response{Reference: decodeTracks(w.Reference)}
	if w.Alternate != nil {
		resp.Alternate = decodeTracks(w.Alternate)
	}
	return resp
}

func decodeTracks(raw map[string]json.RawMessage) map[string]track.Payload {
	out := make(map[string]track.Payload, len(raw))
	for assay, msg := range raw {
		out[assay] = DecodeTrack(msg)
	}
	return out
}

// DecodeTrack classifies a JSON track. A number array is numeric, a 2-D
// array is flattened row-major, an object carrying a "values" or "data"
// array is numeric, null is absent, and anything else is kept as opaque text.
// A null anywhere inside an array makes the track opaque.
func DecodeTrack(msg json.RawMessage) track.Payload {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return track.Payload{}
	}
	opaque := track.Opaque(string(trimmed))

	var flat []*float64
	if err := json.Unmarshal(trimmed, &flat); err == nil {
		vals, ok := numbers(nil, flat)
		if !ok {
			return opaque
		}
		return track.Numeric(vals)
	}

	var grid [][]*float64
	if err := json.Unmarshal(trimmed, &grid); err == nil {
		vals := track.Values{}
		for _, row := range grid {
			if row == nil {
				return opaque
			}
			var ok bool
			if vals, ok = numbers(vals, row); !ok {
				return opaque
			}
		}
		return track.Numeric(vals)
	}

	var obj struct {
		Values []*float64 `json:"values"`
		Data   []*float64 `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		arr := obj.Values
		if arr == nil {
			arr = obj.Data
		}
		if arr != nil {
			vals, ok := numbers(nil, arr)
			if !ok {
				return opaque
			}
			return track.Numeric(vals)
		}
	}

	return opaque
}

// numbers appends the elements of arr to dst, reporting false if any of
// them is null.
func numbers(dst track.Values, arr []*float64) (track.Values, bool) {
	if dst == nil {
		dst = make(track.Values, 0, len(arr))
	}
	for _, v := range arr {
		if v == nil {
			return nil, false
		}
		dst = append(dst, *v)
	}
	return dst, true
}
