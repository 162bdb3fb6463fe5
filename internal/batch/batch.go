// Package batch runs predictions over a list of variants, isolating
// per-item failures and tallying the outcome.
package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/backend"
	"github.com/deluair/alphagenome/internal/variant"
)

// Predictor is satisfied by *analyzer.Analyzer.
type Predictor interface {
	Predict(ctx context.Context, req analyzer.Request) (*analyzer.Result, error)
}

// Input is one variant to predict, with optional context and caller
// metadata that is carried into the result.
type Input struct {
	Variant       variant.Variant
	Interval      *variant.Interval
	OntologyTerms []string
	Outputs       []backend.OutputType
	Metadata      map[string]any
}

func (in Input) request() analyzer.Request {
	return analyzer.Request{
		Variant:       in.Variant,
		Interval:      in.Interval,
		OntologyTerms: in.OntologyTerms,
		Outputs:       in.Outputs,
		Metadata:      in.Metadata,
	}
}

// Failure records an input that could not be predicted.
type Failure struct {
	Input  Input
	Reason string
	Err    error
}

// Summary tallies a processor's runs.
type Summary struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Processor drives batches through a Predictor. Counters, failures and
// results accumulate across Process calls until Reset.
type Processor struct {
	predictor Predictor
	workers   int
	logger    *zap.Logger

	run sync.Mutex // serializes Process calls

	mu        sync.Mutex // guards the fields below
	runID     string
	succeeded int
	failed    int
	failures  []Failure
	results   []*analyzer.Result
}

// New creates a processor. workers <= 0 means a single worker.
func New(p Predictor, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		predictor: p,
		workers:   workers,
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for progress and failure messages.
func (p *Processor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Process predicts every input and returns the successful results in input
// order. A failing item is recorded in Failures and never aborts the batch.
func (p *Processor) Process(ctx context.Context, inputs []Input) []*analyzer.Result {
	p.run.Lock()
	defer p.run.Unlock()

	runID := uuid.NewString()
	p.mu.Lock()
	p.runID = runID
	p.mu.Unlock()

	p.logger.Info("starting batch",
		zap.String("run_id", runID),
		zap.Int("variants", len(inputs)),
		zap.Int("workers", p.workers))

	items := make(chan WorkItem, 2*p.workers)
	go func() {
		defer close(items)
		for i, in := range inputs {
			items <- WorkItem{Seq: i, Input: in}
		}
	}()

	var out []*analyzer.Result
	var ok, failed int
	results := ParallelPredict(ctx, p.predictor, items, p.workers)
	OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			failed++
			p.mu.Lock()
			p.failures = append(p.failures, Failure{Input: r.Input, Reason: r.Err.Error(), Err: r.Err})
			p.mu.Unlock()
			p.logger.Warn("variant prediction failed",
				zap.Int("index", r.Seq),
				zap.String("variant", r.Input.Variant.String()),
				zap.Error(r.Err))
			return nil
		}
		ok++
		out = append(out, r.Result)
		return nil
	})

	p.mu.Lock()
	p.succeeded += ok
	p.failed += failed
	p.results = append(p.results, out...)
	p.mu.Unlock()

	p.logger.Info("batch complete",
		zap.String("run_id", runID),
		zap.Int("successful", ok),
		zap.Int("failed", failed))
	return out
}

// Summary returns the accumulated counts.
func (p *Processor) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Summary{
		Total:     p.succeeded + p.failed,
		Succeeded: p.succeeded,
		Failed:    p.failed,
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	}
	return s
}

// Failures returns the accumulated failures in the order they occurred.
func (p *Processor) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Failure(nil), p.failures...)
}

// Results returns the accumulated successful results.
func (p *Processor) Results() []*analyzer.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*analyzer.Result(nil), p.results...)
}

// RunID returns the identifier of the most recent Process call, or "" if
// none has run since the last Reset.
func (p *Processor) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Reset clears counters, failures and results.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = ""
	p.succeeded, p.failed = 0, 0
	p.failures = nil
	p.results = nil
}
