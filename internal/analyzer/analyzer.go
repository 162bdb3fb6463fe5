// Package analyzer orchestrates single-variant predictions: validation,
// result caching, rate limiting, the backend call and track normalization.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/deluair/alphagenome/internal/backend"
	"github.com/deluair/alphagenome/internal/ratelimit"
	"github.com/deluair/alphagenome/internal/track"
	"github.com/deluair/alphagenome/internal/variant"
)

// DefaultIntervalSize is the width of the window centered on a variant when
// the caller does not supply an interval.
const DefaultIntervalSize int64 = 1_000_000

// DefaultRateLimit is the default number of backend requests per minute.
const DefaultRateLimit = 100

// Config controls analyzer behavior.
type Config struct {
	RateLimit           int   // requests per rolling minute; <= 0 disables limiting
	DefaultIntervalSize int64 // <= 0 uses DefaultIntervalSize
	CacheEnabled        bool
	// ContextKeyedCache adds the interval, ontology terms and requested
	// outputs to the cache key. By default only coordinates are keyed.
	ContextKeyedCache bool
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		RateLimit:           DefaultRateLimit,
		DefaultIntervalSize: DefaultIntervalSize,
		CacheEnabled:        true,
	}
}

// Request describes one variant to predict. Interval, OntologyTerms and
// Outputs are optional.
type Request struct {
	Variant       variant.Variant
	Interval      *variant.Interval
	OntologyTerms []string
	Outputs       []backend.OutputType
	Metadata      map[string]any
}

// Analyzer predicts variant effects through a backend. It is safe for
// concurrent use.
type Analyzer struct {
	client  backend.Predictor
	cfg     Config
	limiter *ratelimit.Limiter
	cache   *Cache // nil when caching is disabled
	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
	clock   ratelimit.Clock
	logger  *zap.Logger
}

// New creates an analyzer that calls client.
func New(client backend.Predictor, cfg Config) *Analyzer {
	if cfg.DefaultIntervalSize <= 0 {
		cfg.DefaultIntervalSize = DefaultIntervalSize
	}
	a := &Analyzer{
		client:  client,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RateLimit, nil),
		clock:   ratelimit.SystemClock{},
		logger:  zap.NewNop(),
		flights: make(map[string]*flight),
	}
	if cfg.CacheEnabled {
		a.cache = NewCache()
	}
	return a
}

// SetLogger sets the logger for cache and prediction messages.
func (a *Analyzer) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetClock replaces the clock used for rate limiting and result timestamps.
func (a *Analyzer) SetClock(c ratelimit.Clock) {
	a.clock = c
	a.limiter.SetClock(c)
}

// Predict returns the normalized prediction for the requested variant.
//
// Validation failures are returned as *variant.ValidationError before any
// quota is consumed. A cached result is returned without waiting for the
// rate limiter or calling the backend. Backend failures are returned as
// *PredictionError and are not retried; the rate limit slot they used is
// not given back. Concurrent misses for one key share a single backend
// call, which is cancelled only when every caller waiting on it has gone.
func (a *Analyzer) Predict(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		predictionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}

	call := a.resolve(req)
	key := a.cacheKey(call)

	if a.cache == nil {
		return a.predict(ctx, key, call, req.Metadata)
	}

	if r, ok := a.cache.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		predictionsTotal.WithLabelValues(outcomeCached).Inc()
		a.logger.Debug("using cached prediction", zap.String("key", key))
		return r, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	for {
		r, err := a.shared(ctx, key, call, req.Metadata)
		// A call abandoned by every earlier caller can hand its
		// cancellation to a caller that joined just as it ended.
		if err != nil && ctx.Err() == nil && errors.Is(err, context.Canceled) {
			continue
		}
		return r, err
	}
}

// flight tracks the callers waiting on one in-flight prediction. Its context
// outlives any single caller and is cancelled once all of them have left.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (a *Analyzer) joinFlight(ctx context.Context, key string) *flight {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		a.flights[key] = f
	}
	f.waiters++
	return f
}

func (a *Analyzer) leaveFlight(key string, f *flight) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		if a.flights[key] == f {
			delete(a.flights, key)
		}
	}
}

// shared runs the prediction for key once for all concurrent callers. Each
// caller stops waiting when its own context is done; the backend call keeps
// running while any caller still waits for it.
func (a *Analyzer) shared(ctx context.Context, key string, call backend.Request, meta map[string]any) (*Result, error) {
	f := a.joinFlight(ctx, key)
	defer a.leaveFlight(key, f)

	ch := a.group.DoChan(key, func() (any, error) {
		if r, ok := a.cache.Get(key); ok {
			return r, nil
		}
		return a.predict(f.ctx, key, call, meta)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			a.logger.Debug("shared in-flight prediction", zap.String("key", key))
		}
		return res.Val.(*Result), nil
	case <-ctx.Done():
		a.logger.Debug("stopped waiting for in-flight prediction", zap.String("key", key))
		return nil, ctx.Err()
	}
}

func validateRequest(req Request) error {
	v := req.Variant
	if err := variant.ValidateVariant(v.Chrom, v.Pos, v.Ref, v.Alt); err != nil {
		return err
	}
	if iv := req.Interval; iv != nil {
		if err := variant.ValidateInterval(iv.Chrom, iv.Start, iv.End); err != nil {
			return err
		}
		if iv.Chrom != v.Chrom {
			return &variant.ValidationError{
				Field:  "interval",
				Value:  iv.Chrom,
				Reason: fmt.Sprintf("interval chromosome %s does not match variant chromosome %s", iv.Chrom, v.Chrom),
			}
		}
	}
	return nil
}

// resolve fills in the interval, ontology terms and outputs.
func (a *Analyzer) resolve(req Request) backend.Request {
	call := backend.Request{
		Variant:       req.Variant,
		OntologyTerms: req.OntologyTerms,
		Outputs:       req.Outputs,
	}
	if req.Interval != nil {
		call.Interval = *req.Interval
	} else {
		call.Interval = variant.CenteredInterval(req.Variant, a.cfg.DefaultIntervalSize)
	}
	if len(call.OntologyTerms) == 0 {
		call.OntologyTerms = []string{backend.DefaultOntologyTerm}
	}
	if len(call.Outputs) == 0 {
		call.Outputs = backend.DefaultOutputs
	}
	return call
}

func (a *Analyzer) cacheKey(call backend.Request) string {
	v := call.Variant
	key := CacheKey(v.Chrom, v.Pos, v.Ref, v.Alt)
	if !a.cfg.ContextKeyedCache {
		return key
	}
	outputs := make([]string, len(call.Outputs))
	for i, o := range call.Outputs {
		outputs[i] = string(o)
	}
	return key + "|" + call.Interval.String() +
		"|" + strings.Join(call.OntologyTerms, ",") +
		"|" + strings.Join(outputs, ",")
}

func (a *Analyzer) predict(ctx context.Context, key string, call backend.Request, meta map[string]any) (*Result, error) {
	if a.client == nil {
		predictionsTotal.WithLabelValues(outcomeError).Inc()
		return nil, &PredictionError{Key: key, Err: ErrNoClient}
	}

	waited, err := a.limiter.Wait(ctx)
	if err != nil {
		predictionsTotal.WithLabelValues(outcomeCancelled).Inc()
		return nil, err
	}
	rateLimitWait.Observe(waited.Seconds())
	if waited > 0 {
		a.logger.Info("rate limit reached, waited for slot",
			zap.String("key", key),
			zap.Duration("waited", waited))
	}

	start := time.Now()
	resp, err := a.client.PredictVariant(ctx, call)
	backendDuration.Observe(time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("backend returned no response")
	}
	if err != nil {
		predictionsTotal.WithLabelValues(outcomeError).Inc()
		a.logger.Warn("prediction failed", zap.String("key", key), zap.Error(err))
		return nil, &PredictionError{Key: key, Err: err}
	}

	result := &Result{
		Chromosome:  call.Variant.Chrom,
		Position:    call.Variant.Pos,
		Reference:   call.Variant.Ref,
		Alternate:   call.Variant.Alt,
		Predictions: a.process(key, resp),
		Metadata:    NormalizeMetadata(meta),
		CreatedAt:   a.clock.Now().UTC(),
	}

	if a.cache != nil {
		a.cache.Put(key, result)
	}
	predictionsTotal.WithLabelValues(outcomeSuccess).Inc()
	return result, nil
}

// process summarizes the known assays present in the response.
func (a *Analyzer) process(key string, resp *backend.Response) map[string]AssayPrediction {
	out := make(map[string]AssayPrediction)
	for _, assay := range backend.KnownAssays {
		ref, ok := resp.Reference[assay]
		if !ok || ref.IsAbsent() {
			continue
		}
		p := AssayPrediction{Reference: track.Summarize(ref)}
		if alt, ok := resp.Alternate[assay]; ok {
			p.Alternate = track.Summarize(alt)
			p.Difference = track.CompareSummaries(p.Reference, p.Alternate)
			if p.Alternate != nil && p.Difference == nil {
				a.logger.Debug("tracks not comparable",
					zap.String("key", key),
					zap.String("assay", assay),
					zap.String("reference_kind", string(p.Reference.Kind)),
					zap.String("alternate_kind", string(p.Alternate.Kind)))
			}
		}
		out[assay] = p
	}
	return out
}

// CacheStats reports the cache state. Enabled is false when caching is off.
func (a *Analyzer) CacheStats() CacheStats {
	if a.cache == nil {
		return CacheStats{}
	}
	return a.cache.Stats()
}

// ClearCache removes every cached result.
func (a *Analyzer) ClearCache() {
	if a.cache == nil {
		a.logger.Warn("cache is disabled, nothing to clear")
		return
	}
	n := a.cache.Len()
	a.cache.Clear()
	a.logger.Info("cleared result cache", zap.Int("entries", n))
}

// ExportCache writes the cache to path. An empty or disabled cache is not
// written.
func (a *Analyzer) ExportCache(path string) error {
	if a.cache == nil {
		a.logger.Warn("cache is disabled, nothing to export")
		return nil
	}
	n := a.cache.Len()
	if n == 0 {
		a.logger.Warn("cache is empty, nothing to export", zap.String("path", path))
		return nil
	}
	if err := a.cache.Export(path); err != nil {
		return err
	}
	a.logger.Info("exported result cache", zap.String("path", path), zap.Int("entries", n))
	return nil
}

// ImportCache replaces the cache with the snapshot at path.
func (a *Analyzer) ImportCache(path string) error {
	if a.cache == nil {
		a.logger.Warn("cache is disabled, skipping import", zap.String("path", path))
		return nil
	}
	if err := a.cache.Import(path); err != nil {
		return err
	}
	a.logger.Info("imported result cache", zap.String("path", path), zap.Int("entries", a.cache.Len()))
	return nil
}

// CachedResults returns the cached results ordered by key.
func (a *Analyzer) CachedResults() []*Result {
	if a.cache == nil {
		return nil
	}
	keys := a.cache.Keys()
	out := make([]*Result, 0, len(keys))
	for _, k := range keys {
		if r, ok := a.cache.Get(k); ok {
			out = append(out, r)
		}
	}
	return out
}
